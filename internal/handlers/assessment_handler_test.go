package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/assessment-engine/internal/capacity"
	"github.com/learnhub/assessment-engine/internal/events"
	"github.com/learnhub/assessment-engine/internal/models"
	"github.com/learnhub/assessment-engine/internal/repositories/memory"
	"github.com/learnhub/assessment-engine/internal/services"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	timeLimit := 600
	store.SeedDefinition(&models.AssessmentDefinition{
		ID:               1,
		Title:            "Smoke Test",
		Status:           models.StatusActive,
		TimeLimitSeconds: &timeLimit,
		Questions: []models.Question{
			{
				ID: 10, AssessmentID: 1, Position: 1, Content: "Q1",
				Options: []models.Option{
					{ID: 100, QuestionID: 10, Position: 1, Content: "right", IsCorrect: true},
					{ID: 101, QuestionID: 10, Position: 2, Content: "wrong"},
				},
			},
		},
	})

	manager := services.NewManager(services.Deps{
		Repo:      store,
		Capacity:  capacity.NewRedisAccountant(client, "test", logger),
		Publisher: events.NewMockPublisher(),
		Logger:    logger,
	})

	router := gin.New()
	NewHandlerManager(manager, logger).SetupRoutes(router, logger, prometheus.NewRegistry())
	return router
}

func doRequest(router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_FullAttemptLifecycle(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/api/v1/assessments/1/start", "42", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view services.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, uint(1), view.AssessmentID)
	require.Len(t, view.Questions, 1)

	rec = doRequest(router, http.MethodPut, "/api/v1/assessments/1/answers", "42", gin.H{
		"question_id":        10,
		"selected_option_id": 100,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/v1/assessments/1/finalize", "42", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result services.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 100, result.ScorePercent)
	assert.True(t, result.Passed)

	rec = doRequest(router, http.MethodGet, "/api/v1/assessments/1/attempts", "42", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/v1/assessments/1/attempts/export", "42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
}

func TestRoutes_RequireIdentityHeader(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/api/v1/assessments/1/start", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/v1/assessments/1/start", "not-a-number", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoutes_ErrorMapping(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/api/v1/assessments/999/start", "42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/v1/assessments/abc/start", "42", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Finalize with nothing in progress surfaces the not-found class.
	rec = doRequest(router, http.MethodPost, "/api/v1/assessments/1/finalize", "7", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_HealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
