package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"go-todo-web/internal/models"
)

// GormTodoRepository はGORM経由でTODOを保存します。
type GormTodoRepository struct {
	db *gorm.DB
}

// NewGormTodoRepository は新しいGormTodoRepositoryを作成します。
func NewGormTodoRepository(db *gorm.DB) *GormTodoRepository {
	return &GormTodoRepository{db: db}
}

func (r *GormTodoRepository) owned(ctx context.Context, id, userID int) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Todo{}).Where("id = ? AND user_id = ?", id, userID)
}

func (r *GormTodoRepository) Create(ctx context.Context, t *models.Todo) (*models.Todo, error) {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, fmt.Errorf("could not insert todo: %w", err)
	}
	return t, nil
}

func (r *GormTodoRepository) FindByUserID(ctx context.Context, userID int) ([]*models.Todo, error) {
	todos := []*models.Todo{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&todos).Error
	if err != nil {
		return nil, fmt.Errorf("could not query todos: %w", err)
	}
	return todos, nil
}

func (r *GormTodoRepository) FindByIDAndUserID(ctx context.Context, id, userID int) (*models.Todo, error) {
	var t models.Todo
	if err := r.owned(ctx, id, userID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTodoNotFound
		}
		return nil, fmt.Errorf("could not query todo: %w", err)
	}
	return &t, nil
}

// Update はmapで更新するため、completed=false や空の説明も書き込まれます。
func (r *GormTodoRepository) Update(ctx context.Context, t *models.Todo) (*models.Todo, error) {
	result := r.owned(ctx, t.ID, t.UserID).Updates(map[string]any{
		"title":       t.Title,
		"description": t.Description,
		"completed":   t.Completed,
		"updated_at":  time.Now(),
	})
	if result.Error != nil {
		return nil, fmt.Errorf("could not update todo: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrTodoNotFound
	}
	return r.FindByIDAndUserID(ctx, t.ID, t.UserID)
}

func (r *GormTodoRepository) ToggleCompleted(ctx context.Context, id, userID int) (*models.Todo, error) {
	result := r.owned(ctx, id, userID).Updates(map[string]any{
		"completed":  gorm.Expr("NOT completed"),
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return nil, fmt.Errorf("could not toggle todo: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrTodoNotFound
	}
	return r.FindByIDAndUserID(ctx, id, userID)
}

func (r *GormTodoRepository) Delete(ctx context.Context, id, userID int) error {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Todo{})
	if result.Error != nil {
		return fmt.Errorf("could not delete todo: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTodoNotFound
	}
	return nil
}

func (r *GormTodoRepository) CountByUserID(ctx context.Context, userID int) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Todo{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("could not count todos: %w", err)
	}
	return n, nil
}
