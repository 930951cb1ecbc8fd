package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/learnhub/assessment-engine/internal/models"
	"github.com/learnhub/assessment-engine/internal/repositories"
)

type CatalogPostgreSQL struct {
	db *gorm.DB
}

func NewCatalogPostgreSQL(db *gorm.DB) repositories.CatalogRepository {
	return &CatalogPostgreSQL{db: db}
}

func (c *CatalogPostgreSQL) GetDefinition(ctx context.Context, assessmentID uint) (*models.AssessmentDefinition, error) {
	var def models.AssessmentDefinition
	err := c.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.position ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("options.position ASC")
		}).
		First(&def, assessmentID).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &def, nil
}
