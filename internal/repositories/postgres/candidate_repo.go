package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chouhanjibanti/interview-live/internal/models"
	"github.com/chouhanjibanti/interview-live/internal/utils"
)

type CandidateRepository interface {
	GetByResumeID(ctx context.Context, resumeID string) (*models.Candidate, error)
	Upsert(ctx context.Context, c *models.Candidate) error
	// SimilarByEmbedding returns candidates closest to the given resume
	// embedding, nearest first.
	SimilarByEmbedding(ctx context.Context, c *models.Candidate, limit int) ([]models.Candidate, error)
}

type candidateRepo struct {
	db *gorm.DB
}

func NewCandidateRepo(db *gorm.DB) CandidateRepository {
	return &candidateRepo{db: db}
}

func (r *candidateRepo) GetByResumeID(ctx context.Context, resumeID string) (*models.Candidate, error) {
	var row models.Candidate
	err := r.db.WithContext(ctx).Where("resume_id = ?", resumeID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *candidateRepo) Upsert(ctx context.Context, c *models.Candidate) error {
	c.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "resume_id"}},
			UpdateAll: true,
		}).
		Create(c).Error
}

func (r *candidateRepo) SimilarByEmbedding(ctx context.Context, c *models.Candidate, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []models.Candidate
	err := r.db.WithContext(ctx).
		Where("resume_id <> ?", c.ResumeID).
		Order(clause.Expr{SQL: "resume_embedding <=> ?", Vars: []interface{}{c.ResumeEmbedding}}).
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
