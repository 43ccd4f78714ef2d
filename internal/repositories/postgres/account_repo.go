package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/chouhanjibanti/interview-live/internal/models"
	"github.com/chouhanjibanti/interview-live/internal/utils"
)

type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, a *models.Account) error
	TouchLastSignIn(ctx context.Context, id string) error
}

type accountRepo struct {
	db *gorm.DB
}

func NewAccountRepo(db *gorm.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var row models.Account
	err := r.db.WithContext(ctx).Where("email = ?", email).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	var row models.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *accountRepo) Create(ctx context.Context, a *models.Account) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *accountRepo) TouchLastSignIn(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Update("last_sign_in_at", time.Now().UTC()).Error
}
