package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"studybot/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create learner account failed: %w", err)
	}
	return nil
}

// FindByEmail expects an already normalized address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "by email", "email = ?", email)
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	return r.findOne(ctx, "by id", "id = ?", id)
}

func (r *UserRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check email in use failed: %w", err)
	}
	return n > 0, nil
}

// RecordLogin stamps the login time without touching updated_at.
func (r *UserRepository) RecordLogin(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).UpdateColumn("last_login_at", at)
	if res.Error != nil {
		return fmt.Errorf("record login failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("record login failed: account %d missing", id)
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, what string, cond string, arg any) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where(cond, arg).Take(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("find learner %s failed: %w", what, err)
	}
	return &user, nil
}
