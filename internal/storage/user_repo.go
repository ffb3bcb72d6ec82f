package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

type UserRepo interface {
	domain.QuotaStore
	Create(ctx context.Context, u *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Rename(ctx context.Context, oldName, newName string) error
	List(ctx context.Context) ([]User, error)
	SetQuota(ctx context.Context, username string, quota int) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewUserRepo creates a gorm-backed UserRepo.
func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) Create(ctx context.Context, u *User) error {
	err := r.db.WithContext(ctx).Create(u).Error
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *userRepo) first(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) Update(ctx context.Context, u *User) error {
	err := r.db.WithContext(ctx).Save(u).Error
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// Rename changes a username and moves the user's documents and history to the
// new name in one transaction.
func (r *userRepo) Rename(ctx context.Context, oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&User{}).Where("username = ?", oldName).Update("username", newName)
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return ErrConflict
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		var docs []Document
		if err := tx.Where("owner = ?", oldName).Find(&docs).Error; err != nil {
			return err
		}
		for _, d := range docs {
			if err := tx.Model(&Document{}).Where("id = ?", d.ID).Updates(map[string]any{
				"owner":  newName,
				"source": domain.SourceID(newName, d.Name),
			}).Error; err != nil {
				return err
			}
		}
		return tx.Model(&ChatHistoryEntry{}).Where("username = ?", oldName).Update("username", newName).Error
	})
}

func (r *userRepo) List(ctx context.Context) ([]User, error) {
	var users []User
	err := r.db.WithContext(ctx).Order("username").Find(&users).Error
	return users, err
}

func (r *userRepo) GetQuota(ctx context.Context, username string) (int, error) {
	u, err := r.GetByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	return u.QueryQuota, nil
}

// DecrementQuota spends one query. It reports false without error when the
// user has nothing left.
func (r *userRepo) DecrementQuota(ctx context.Context, username string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&User{}).
		Where("username = ? AND query_quota > 0", username).
		Update("query_quota", gorm.Expr("query_quota - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		r.log.Warn("quota decrement refused", "user", username)
		return false, nil
	}
	return true, nil
}

// SetQuota overwrites the user's remaining query quota.
func (r *userRepo) SetQuota(ctx context.Context, username string, quota int) error {
	if quota < 0 {
		quota = 0
	}
	res := r.db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Update("query_quota", quota)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
