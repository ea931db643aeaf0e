package auth

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/db"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// FindUser loads a user by id.
func FindUser(ctx context.Context, dbx *gorm.DB, id uint) (*User, error) {
	var u User
	err := dbx.WithContext(ctx).First(&u, id).Error
	if db.IsNotFound(err) {
		return nil, fmt.Errorf("user %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
