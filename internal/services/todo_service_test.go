package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-todo-web/internal/database"
	"go-todo-web/internal/models"
	"go-todo-web/internal/repositories"
	"go-todo-web/internal/services"
)

type fixture struct {
	db      *gorm.DB
	repo    *repositories.GormTodoRepository
	service *services.TodoService
	owner   models.Identity
	other   models.Identity
}

func setupTodoService(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)

	users := repositories.NewGormUserRepository(db)
	owner, err := users.Create(context.Background(), &models.User{Username: "testuser", Email: "test@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	other, err := users.Create(context.Background(), &models.User{Username: "otheruser", Email: "other@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	repo := repositories.NewGormTodoRepository(db)
	return &fixture{
		db:      db,
		repo:    repo,
		service: services.NewTodoService(repo),
		owner:   models.Identity{UserID: owner.ID, Email: owner.Email},
		other:   models.Identity{UserID: other.ID, Email: other.Email},
	}
}

func (f *fixture) create(t *testing.T, ident models.Identity, title string) *models.Todo {
	t.Helper()
	todo, err := f.service.CreateTodo(context.Background(), ident, models.TodoForm{Title: title, Description: title + " description"})
	require.NoError(t, err)
	return todo
}

func TestCreateTodo_Success(t *testing.T) {
	f := setupTodoService(t)
	ctx := context.Background()

	older := f.create(t, f.owner, "Older")
	todo, err := f.service.CreateTodo(ctx, f.owner, models.TodoForm{Title: "Buy milk", Completed: "on"})
	require.NoError(t, err)

	assert.NotZero(t, todo.ID)
	assert.Equal(t, "Buy milk", todo.Title)
	assert.Equal(t, "", todo.Description)
	assert.False(t, todo.Completed, "new todos always start incomplete")
	assert.Equal(t, f.owner.UserID, todo.UserID)
	assert.WithinDuration(t, time.Now(), todo.CreatedAt, 5*time.Second)
	assert.WithinDuration(t, time.Now(), todo.UpdatedAt, 5*time.Second)

	todos, err := f.service.List(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, todos, 2)
	assert.Equal(t, todo.ID, todos[0].ID, "newest first")
	assert.Equal(t, older.ID, todos[1].ID)
}

func TestCreateTodo_TitleRequired(t *testing.T) {
	f := setupTodoService(t)
	ctx := context.Background()

	for _, title := range []string{"", "   "} {
		todo, err := f.service.CreateTodo(ctx, f.owner, models.TodoForm{Title: title, Description: "New Description"})
		require.Error(t, err)
		assert.Nil(t, todo)

		var verr *services.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "title", verr.Field)
		assert.Equal(t, "Title is required!", verr.Error())
	}

	n, err := f.repo.CountByUserID(ctx, f.owner.UserID)
	require.NoError(t, err)
	assert.Zero(t, n, "no record is created")
}

func TestCreateTodo_TrimsTitle(t *testing.T) {
	f := setupTodoService(t)
	todo := f.create(t, f.owner, "  padded  ")
	assert.Equal(t, "padded", todo.Title)
}

func TestTitleLengthLimit(t *testing.T) {
	f := setupTodoService(t)
	ctx := context.Background()
	todo := f.create(t, f.owner, "Test Todo")

	// 255文字ちょうどは保存できる (マルチバイトも1文字として数える)
	atLimit := strings.Repeat("あ", services.MaxTitleLength)
	created := f.create(t, f.owner, atLimit)
	assert.Equal(t, atLimit, created.Title)

	tooLong := strings.Repeat("x", services.MaxTitleLength+1)
	_, err := f.service.CreateTodo(ctx, f.owner, models.TodoForm{Title: tooLong})
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)
	assert.Equal(t, services.MsgTitleTooLong, verr.Message)

	_, err = f.service.UpdateTodo(ctx, f.owner, todo.ID, models.TodoForm{Title: tooLong})
	require.ErrorAs(t, err, &verr)

	n, err := f.repo.CountByUserID(ctx, f.owner.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	stored, err := f.service.GetOwned(ctx, f.owner, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Todo", stored.Title)
}

func TestList_OnlyOwnTodos(t *testing.T) {
	f := setupTodoService(t)
	ctx := context.Background()

	mine := f.create(t, f.owner, "Test Todo")
	theirs := f.create(t, f.other, "Other Todo")

	todos, err := f.service.List(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, mine.ID, todos[0].ID)

	todos, err = f.service.List(ctx, f.other)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, theirs.ID, todos[0].ID)
}

func TestList_EmptyIsNotNil(t *testing.T) {
	f := setupTodoService(t)
	todos, err := f.service.List(context.Background(), f.owner)
	require.NoError(t, err)
	assert.NotNil(t, todos)
	assert.Empty(t, todos)
}

func TestUpdateTodo_Success(t *testing.T) {
	f := setupTodoService(t)
	ctx := context.Background()
	todo := f.create(t, f.owner, "Test Todo")

	time.Sleep(10 * time.Millisecond)
	updated, err := f.service.UpdateTodo(ctx, f.owner, todo.ID, models.TodoForm{
		Title:       "Updated Todo",
		Description: "Updated Description",
		Completed:   "on",
	})
	require.NoError(t, err)
	assert.Equal(t, "Updated Todo", updated.Title)
	assert.Equal(t, "Updated Description", updated.Description)
	assert.True(t, updated.Completed)
	assert.Equal(t, f.owner.UserID, updated.UserID, "owner is immutable")
	assert.True(t, updated.UpdatedAt.After(todo.UpdatedAt), "updated_at advances")
	assert.WithinDuration(t, todo.CreatedAt, updated.CreatedAt, time.Millisecond, "created_at is immutable")

	// completed が未送信なら false に戻る
	updated, err = f.service.UpdateTodo(ctx, f.owner, todo.ID, models.TodoForm{Title: "Updated Todo"})
	require.NoError(t, err)
	assert.False(t, updated.Completed)
	assert.Equal(t, "", updated.Description)
}

func TestUpdateTodo_TitleRequiredLeavesRecordUnchanged(t *testing.T) {
	f := setupTodoService(t)
	ctx := context.Background()
	todo := f.create(t, f.owner, "Test Todo")

	_, err := f.service.UpdateTodo(ctx, f.owner, todo.ID, models.TodoForm{Title: "", Description: "Updated Description"})
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, services.MsgTitleRequired, verr.Message)

	stored, err := f.service.GetOwned(ctx, f.owner, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Todo", stored.Title)
	assert.Equal(t, "Test Todo description", stored.Description)
}

func TestDeleteTodo(t *testing.T) {
	f := setupTodoService(t)
	ctx := context.Background()
	todo := f.create(t, f.owner, "Test Todo")

	require.NoError(t, f.service.DeleteTodo(ctx, f.owner, todo.ID))

	_, err := f.service.GetOwned(ctx, f.owner, todo.ID)
	require.ErrorIs(t, err, services.ErrTodoNotFound)

	err = f.service.DeleteTodo(ctx, f.owner, todo.ID)
	require.ErrorIs(t, err, services.ErrTodoNotFound)
}

func TestToggleTodo(t *testing.T) {
	f := setupTodoService(t)
	ctx := context.Background()
	todo := f.create(t, f.owner, "Test Todo")
	require.False(t, todo.Completed)

	toggled, err := f.service.ToggleTodo(ctx, f.owner, todo.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Completed)

	toggled, err = f.service.ToggleTodo(ctx, f.owner, todo.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Completed, "two toggles restore the original state")
}

func TestOtherOwner_IsNotFound(t *testing.T) {
	f := setupTodoService(t)
	ctx := context.Background()
	theirs := f.create(t, f.other, "Other Todo")

	_, err := f.service.GetOwned(ctx, f.owner, theirs.ID)
	assert.ErrorIs(t, err, services.ErrTodoNotFound)

	_, err = f.service.UpdateTodo(ctx, f.owner, theirs.ID, models.TodoForm{Title: "Hacked Todo"})
	assert.ErrorIs(t, err, services.ErrTodoNotFound)

	// タイトルが空でも検証エラーではなく NotFound
	_, err = f.service.UpdateTodo(ctx, f.owner, theirs.ID, models.TodoForm{Title: ""})
	assert.ErrorIs(t, err, services.ErrTodoNotFound)

	_, err = f.service.ToggleTodo(ctx, f.owner, theirs.ID)
	assert.ErrorIs(t, err, services.ErrTodoNotFound)

	err = f.service.DeleteTodo(ctx, f.owner, theirs.ID)
	assert.ErrorIs(t, err, services.ErrTodoNotFound)

	stored, err := f.service.GetOwned(ctx, f.other, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, "Other Todo", stored.Title)
	assert.False(t, stored.Completed)
}

func TestGetOwned_InvalidID(t *testing.T) {
	f := setupTodoService(t)
	for _, id := range []int{0, -1, 9999} {
		_, err := f.service.GetOwned(context.Background(), f.owner, id)
		assert.ErrorIs(t, err, services.ErrTodoNotFound)
	}
}

func TestTodoService_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
		otel.SetTracerProvider(prev)
	})

	f := setupTodoService(t)
	ctx := context.Background()

	todo := f.create(t, f.owner, "Traced")
	_, _ = f.service.CreateTodo(ctx, f.owner, models.TodoForm{})
	_, _ = f.service.GetOwned(ctx, f.other, todo.ID)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, "TodoService.CreateTodo", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)

	// 検証エラーとNotFoundは span のエラーにしない
	assert.Equal(t, "TodoService.CreateTodo", spans[1].Name)
	assert.Equal(t, codes.Unset, spans[1].Status.Code)
	assert.Equal(t, "TodoService.GetOwned", spans[2].Name)
	assert.Equal(t, codes.Unset, spans[2].Status.Code)

	attrs := map[string]any{}
	for _, kv := range spans[2].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, int64(f.other.UserID), attrs["user.id"])
	assert.Equal(t, true, attrs["todo.not_found"])
}
