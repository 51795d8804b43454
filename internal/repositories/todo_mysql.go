package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"go-todo-web/internal/models"
)

const todoColumns = "id, user_id, title, description, completed, created_at, updated_at"

// MySQLTodoRepository は database/sql と MySQL でTODOを保存します。
type MySQLTodoRepository struct {
	DB *sql.DB
}

// NewMySQLTodoRepository は新しいMySQLTodoRepositoryインスタンスを作成します。
func NewMySQLTodoRepository(db *sql.DB) *MySQLTodoRepository {
	return &MySQLTodoRepository{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	var t models.Todo
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create は新しいTodoタスクをデータベースに挿入します。
func (r *MySQLTodoRepository) Create(ctx context.Context, t *models.Todo) (*models.Todo, error) {
	now := time.Now()
	query := "INSERT INTO todos (user_id, title, description, completed, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"

	result, err := r.DB.ExecContext(ctx, query, t.UserID, t.Title, t.Description, t.Completed, now, now)
	if err != nil {
		log.Printf("Failed to insert todo: %v", err)
		return nil, fmt.Errorf("could not insert todo: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("could not get last insert ID: %w", err)
	}
	t.ID = int(id)
	t.CreatedAt = now
	t.UpdatedAt = now
	return t, nil
}

// FindByUserID はユーザーのTodoを新しい順に取得します。
func (r *MySQLTodoRepository) FindByUserID(ctx context.Context, userID int) ([]*models.Todo, error) {
	query := "SELECT " + todoColumns + " FROM todos WHERE user_id = ? ORDER BY created_at DESC, id DESC"

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		log.Printf("Failed to query todos: %v", err)
		return nil, fmt.Errorf("could not query todos: %w", err)
	}
	defer rows.Close()

	todos := []*models.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating todos: %w", err)
	}
	return todos, nil
}

// FindByIDAndUserID は所有者で絞り込んでTodoを1件取得します。
func (r *MySQLTodoRepository) FindByIDAndUserID(ctx context.Context, id, userID int) (*models.Todo, error) {
	query := "SELECT " + todoColumns + " FROM todos WHERE id = ? AND user_id = ?"

	t, err := scanTodo(r.DB.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTodoNotFound
		}
		log.Printf("Failed to query todo by ID: %v", err)
		return nil, fmt.Errorf("could not query todo: %w", err)
	}
	return t, nil
}

// Update はタイトル・説明・完了状態を上書きします。
// DSNに clientFoundRows=true を付けているため、値が同じでも一致行数が返ります。
func (r *MySQLTodoRepository) Update(ctx context.Context, t *models.Todo) (*models.Todo, error) {
	query := "UPDATE todos SET title = ?, description = ?, completed = ?, updated_at = ? WHERE id = ? AND user_id = ?"

	result, err := r.DB.ExecContext(ctx, query, t.Title, t.Description, t.Completed, time.Now(), t.ID, t.UserID)
	if err != nil {
		log.Printf("Failed to update todo: %v", err)
		return nil, fmt.Errorf("could not update todo: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return nil, err
	}
	return r.FindByIDAndUserID(ctx, t.ID, t.UserID)
}

// ToggleCompleted は完了状態を1回のUPDATEで反転します。
func (r *MySQLTodoRepository) ToggleCompleted(ctx context.Context, id, userID int) (*models.Todo, error) {
	query := "UPDATE todos SET completed = NOT completed, updated_at = ? WHERE id = ? AND user_id = ?"

	result, err := r.DB.ExecContext(ctx, query, time.Now(), id, userID)
	if err != nil {
		log.Printf("Failed to toggle todo: %v", err)
		return nil, fmt.Errorf("could not toggle todo: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return nil, err
	}
	return r.FindByIDAndUserID(ctx, id, userID)
}

// Delete は指定されたIDのTodoタスクを削除します。
func (r *MySQLTodoRepository) Delete(ctx context.Context, id, userID int) error {
	result, err := r.DB.ExecContext(ctx, "DELETE FROM todos WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		log.Printf("Failed to delete todo: %v", err)
		return fmt.Errorf("could not delete todo: %w", err)
	}
	return checkAffected(result)
}

// CountByUserID はユーザーのTodo件数を返します。
func (r *MySQLTodoRepository) CountByUserID(ctx context.Context, userID int) (int64, error) {
	var n int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM todos WHERE user_id = ?", userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("could not count todos: %w", err)
	}
	return n, nil
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTodoNotFound
	}
	return nil
}
