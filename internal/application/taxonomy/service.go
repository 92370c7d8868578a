package taxonomy

import (
	"context"
	"errors"
	"strings"

	"promptmarket/internal/domain"
	"promptmarket/internal/pkg/apperror"
	"promptmarket/internal/pkg/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNameRequired   = apperror.New(apperror.KindValidation, "Name is required")
	ErrDuplicate      = apperror.New(apperror.KindConflict, "An entry with this name already exists")
	ErrParentNotFound = apperror.New(apperror.KindValidation, "Parent category not found")
	ErrNestedParent   = apperror.New(apperror.KindValidation, "Categories can only nest one level deep")
)

type Service struct {
	DB *gorm.DB
}

func (s *Service) CreateCategory(ctx context.Context, name, description string, parentID *uuid.UUID) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	slug := validation.Slugify(name)
	if slug == "" {
		return nil, ErrNameRequired
	}
	db := s.DB.WithContext(ctx)
	if parentID != nil {
		var parent domain.Category
		if err := db.First(&parent, "id = ?", *parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, err
		}
		if parent.ParentID != nil {
			return nil, ErrNestedParent
		}
	}
	c := &domain.Category{Name: name, Slug: slug, Description: description, ParentID: parentID}
	if err := db.Create(c).Error; err != nil {
		return nil, duplicate(err)
	}
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := s.DB.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

func (s *Service) CreateTag(ctx context.Context, name string) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	slug := validation.Slugify(name)
	if slug == "" {
		return nil, ErrNameRequired
	}
	t := &domain.Tag{Name: name, Slug: slug}
	if err := s.DB.WithContext(ctx).Create(t).Error; err != nil {
		return nil, duplicate(err)
	}
	return t, nil
}

func (s *Service) ListTags(ctx context.Context) ([]domain.Tag, error) {
	var out []domain.Tag
	err := s.DB.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

func duplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
