// Package repositories はデータベース操作を行うリポジトリを提供します。
package repositories

import (
	"context"
	"errors"

	"go-todo-web/internal/models"
)

// ErrTodoNotFound はTODOが見つからない、または所有者が異なる場合のエラーです。
var ErrTodoNotFound = errors.New("todo not found")

// TodoRepository はTODOの永続化を抽象化します。
// idを受け取る操作はすべて所有者(userID)でも絞り込みます。
type TodoRepository interface {
	Create(ctx context.Context, t *models.Todo) (*models.Todo, error)
	FindByUserID(ctx context.Context, userID int) ([]*models.Todo, error)
	FindByIDAndUserID(ctx context.Context, id, userID int) (*models.Todo, error)
	Update(ctx context.Context, t *models.Todo) (*models.Todo, error)
	ToggleCompleted(ctx context.Context, id, userID int) (*models.Todo, error)
	Delete(ctx context.Context, id, userID int) error
	CountByUserID(ctx context.Context, userID int) (int64, error)
}
