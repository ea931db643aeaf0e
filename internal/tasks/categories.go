package tasks

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/db"
)

type CategoryFields struct {
	Name        *string `json:"name" validate:"omitempty,mintrim=1,max=100"`
	Color       *string `json:"color" validate:"omitempty,hexcolor,max=7"`
	Description *string `json:"description"`
}

var categoryOrdering = map[string]string{
	"name":            "name",
	"usage_frequency": "usage_frequency",
	"created_at":      "created_at",
}

// ListCategories returns every category; categories are not owned.
func (s *Service) ListCategories(ctx context.Context, search, ordering string) ([]Category, error) {
	q := db.Search(s.db.WithContext(ctx).Model(&Category{}), search, "name", "description")
	q = db.Ordering(q, ordering, categoryOrdering, []string{"name"}, "id")

	out := []Category{}
	err := q.Find(&out).Error
	return out, err
}

func (s *Service) GetCategory(ctx context.Context, id uint) (*Category, error) {
	var c Category
	err := s.db.WithContext(ctx).First(&c, id).Error
	if db.IsNotFound(err) {
		return nil, fmt.Errorf("category %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) CreateCategory(ctx context.Context, f CategoryFields) (*Category, error) {
	if f.Name == nil {
		return nil, apperr.Invalid("name", "this field is required")
	}
	c := &Category{Color: DefaultCategoryColor}
	applyCategory(c, f)

	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, categoryErr(err)
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id uint, f CategoryFields) (*Category, error) {
	c, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	applyCategory(c, f)

	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, categoryErr(err)
	}
	return c, nil
}

// DeleteCategory removes a category and detaches it from every task.
func (s *Service) DeleteCategory(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&Category{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("category %d: %w", id, apperr.ErrNotFound)
		}
		return tx.Model(&Task{}).Where("category_id = ?", id).Update("category_id", nil).Error
	})
}

func applyCategory(c *Category, f CategoryFields) {
	if f.Name != nil {
		c.Name = strings.TrimSpace(*f.Name)
	}
	if f.Color != nil {
		c.Color = *f.Color
	}
	if f.Description != nil {
		c.Description = *f.Description
	}
}

func categoryErr(err error) error {
	if db.IsUniqueViolation(err) {
		return apperr.Invalid("name", "category with this name already exists")
	}
	return err
}
