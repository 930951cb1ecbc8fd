package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/learnhub/assessment-engine/internal/repositories"
)

// RepositoryPostgreSQL bundles the per-aggregate stores over one *gorm.DB.
type RepositoryPostgreSQL struct {
	db      *gorm.DB
	catalog repositories.CatalogRepository
	session repositories.SessionRepository
	answer  repositories.AnswerRepository
	attempt repositories.AttemptRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &RepositoryPostgreSQL{
		db:      db,
		catalog: NewCatalogPostgreSQL(db),
		session: NewSessionPostgreSQL(db),
		answer:  NewAnswerPostgreSQL(db),
		attempt: NewAttemptPostgreSQL(db),
	}
}

func (r *RepositoryPostgreSQL) Catalog() repositories.CatalogRepository { return r.catalog }
func (r *RepositoryPostgreSQL) Session() repositories.SessionRepository { return r.session }
func (r *RepositoryPostgreSQL) Answer() repositories.AnswerRepository   { return r.answer }
func (r *RepositoryPostgreSQL) Attempt() repositories.AttemptRepository { return r.attempt }

func (r *RepositoryPostgreSQL) WithTx(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// mapNotFound translates the driver sentinel into the repository one.
func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	return err
}
