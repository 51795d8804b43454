package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"go-todo-web/internal/models"
	"go-todo-web/internal/repositories"
)

// MsgTitleRequired はタイトル未入力時にフォームへ表示するメッセージです。
const MsgTitleRequired = "Title is required!"

// MaxTitleLength はタイトルの最大文字数です。todos.title の VARCHAR(255) に合わせています。
const MaxTitleLength = 255

// MsgTitleTooLong はタイトルが MaxTitleLength を超えた場合のメッセージです。
const MsgTitleTooLong = "Title must be at most 255 characters."

// ErrTodoNotFound は存在しない、または他人のTODOを指定した場合のエラーです。
// 他人のTODOでも Forbidden ではなく NotFound として扱います。
var ErrTodoNotFound = repositories.ErrTodoNotFound

// ValidationError はフォーム入力の検証エラーです。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// TodoService はTodo関連のビジネスロジックを扱います。
type TodoService struct {
	todoRepo repositories.TodoRepository
	tracer   trace.Tracer
}

// NewTodoService は新しいTodoServiceを作成します。
func NewTodoService(todoRepo repositories.TodoRepository) *TodoService {
	return &TodoService{
		todoRepo: todoRepo,
		tracer:   otel.Tracer("go-todo-web/services"),
	}
}

func (s *TodoService) start(ctx context.Context, name string, ident models.Identity, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.Int("user.id", ident.UserID))
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// finish はspanを閉じます。検証エラーとNotFoundは想定内なのでエラー扱いにしません。
func finish(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		return
	}
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		span.SetAttributes(attribute.String("todo.validation_error", verr.Field))
	case errors.Is(err, ErrTodoNotFound):
		span.SetAttributes(attribute.Bool("todo.not_found", true))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", &ValidationError{Field: "title", Message: MsgTitleRequired}
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", &ValidationError{Field: "title", Message: MsgTitleTooLong}
	}
	return title, nil
}

// List はユーザーのTodoを作成日時の新しい順に返します。
func (s *TodoService) List(ctx context.Context, ident models.Identity) (todos []*models.Todo, err error) {
	ctx, span := s.start(ctx, "TodoService.List", ident)
	defer func() { finish(span, err) }()

	todos, err = s.todoRepo.FindByUserID(ctx, ident.UserID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("todo.count", len(todos)))
	return todos, nil
}

// GetOwned は所有者で絞り込んだTodoを返します。
// 詳細・更新・削除・完了切り替えはすべてここを通ります。
func (s *TodoService) GetOwned(ctx context.Context, ident models.Identity, id int) (todo *models.Todo, err error) {
	ctx, span := s.start(ctx, "TodoService.GetOwned", ident, attribute.Int("todo.id", id))
	defer func() { finish(span, err) }()

	return s.getOwned(ctx, ident, id)
}

func (s *TodoService) getOwned(ctx context.Context, ident models.Identity, id int) (*models.Todo, error) {
	if id <= 0 {
		return nil, ErrTodoNotFound
	}
	return s.todoRepo.FindByIDAndUserID(ctx, id, ident.UserID)
}

// CreateTodo は新しいTodoを作成します。所有者はリクエストしたユーザーです。
func (s *TodoService) CreateTodo(ctx context.Context, ident models.Identity, form models.TodoForm) (todo *models.Todo, err error) {
	ctx, span := s.start(ctx, "TodoService.CreateTodo", ident)
	defer func() { finish(span, err) }()

	title, err := validateTitle(form.Title)
	if err != nil {
		return nil, err
	}
	return s.todoRepo.Create(ctx, &models.Todo{
		UserID:      ident.UserID,
		Title:       title,
		Description: form.Description,
		Completed:   false,
	})
}

// UpdateTodo はTodoを更新します。所有者の確認はタイトルの検証より先に行います。
func (s *TodoService) UpdateTodo(ctx context.Context, ident models.Identity, id int, form models.TodoForm) (todo *models.Todo, err error) {
	ctx, span := s.start(ctx, "TodoService.UpdateTodo", ident, attribute.Int("todo.id", id))
	defer func() { finish(span, err) }()

	existing, err := s.getOwned(ctx, ident, id)
	if err != nil {
		return nil, err
	}
	title, err := validateTitle(form.Title)
	if err != nil {
		return nil, err
	}
	existing.Title = title
	existing.Description = form.Description
	existing.Completed = form.IsCompleted()
	return s.todoRepo.Update(ctx, existing)
}

// DeleteTodo はTodoを削除します。
func (s *TodoService) DeleteTodo(ctx context.Context, ident models.Identity, id int) (err error) {
	ctx, span := s.start(ctx, "TodoService.DeleteTodo", ident, attribute.Int("todo.id", id))
	defer func() { finish(span, err) }()

	if _, err = s.getOwned(ctx, ident, id); err != nil {
		return err
	}
	return s.todoRepo.Delete(ctx, id, ident.UserID)
}

// ToggleTodo は完了状態を反転します。
func (s *TodoService) ToggleTodo(ctx context.Context, ident models.Identity, id int) (todo *models.Todo, err error) {
	ctx, span := s.start(ctx, "TodoService.ToggleTodo", ident, attribute.Int("todo.id", id))
	defer func() { finish(span, err) }()

	if _, err = s.getOwned(ctx, ident, id); err != nil {
		return nil, err
	}
	todo, err = s.todoRepo.ToggleCompleted(ctx, id, ident.UserID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("todo.completed", todo.Completed))
	return todo, nil
}
