package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-todo-web/internal/flash"
	"go-todo-web/internal/models"
	"go-todo-web/internal/services"
)

// TodoHandler はTodo関連のハンドラーを管理します。
type TodoHandler struct {
	todoService *services.TodoService
	flash       flash.Store
}

// NewTodoHandler は新しいTodoHandlerを作成します。
func NewTodoHandler(todoService *services.TodoService, flashStore flash.Store) *TodoHandler {
	return &TodoHandler{todoService: todoService, flash: flashStore}
}

func identity(c *gin.Context) (models.Identity, bool) {
	ident, ok := CurrentIdentity(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
	}
	return ident, ok
}

func formFromTodo(t *models.Todo) models.TodoForm {
	form := models.TodoForm{Title: t.Title, Description: t.Description}
	if t.Completed {
		form.Completed = "on"
	}
	return form
}

// ListHandler はユーザーのTodo一覧を表示します。
func (h *TodoHandler) ListHandler(c *gin.Context) {
	ident, ok := identity(c)
	if !ok {
		return
	}
	todos, err := h.todoService.List(c.Request.Context(), ident)
	if err != nil {
		handleServiceError(c, err, "list")
		return
	}
	c.HTML(http.StatusOK, "todo_list.html", page(c, h.flash, "My Todos", gin.H{"Todos": todos}))
}

// NewHandler は作成フォームを表示します。
func (h *TodoHandler) NewHandler(c *gin.Context) {
	if _, ok := identity(c); !ok {
		return
	}
	h.renderForm(c, "Create New Todo", "/todos/new", false, models.TodoForm{}, "")
}

// CreateHandler は新しいTodoを作成します。
func (h *TodoHandler) CreateHandler(c *gin.Context) {
	ident, ok := identity(c)
	if !ok {
		return
	}
	var form models.TodoForm
	if err := c.ShouldBind(&form); err != nil {
		RenderError(c, http.StatusBadRequest)
		return
	}

	_, err := h.todoService.CreateTodo(c.Request.Context(), ident, form)
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		h.renderForm(c, "Create New Todo", "/todos/new", false, form, verr.Message)
		return
	}
	if err != nil {
		handleServiceError(c, err, "create")
		return
	}
	addFlash(c, h.flash, ident.SessionID, flash.LevelSuccess, "Todo created successfully!")
	c.Redirect(http.StatusFound, ListPath)
}

// DetailHandler は指定IDのTodoを表示します。
func (h *TodoHandler) DetailHandler(c *gin.Context) {
	todo, ok := h.owned(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "todo_detail.html", page(c, h.flash, todo.Title, gin.H{"Todo": todo}))
}

// EditHandler は現在の値を入れた更新フォームを表示します。
func (h *TodoHandler) EditHandler(c *gin.Context) {
	todo, ok := h.owned(c)
	if !ok {
		return
	}
	h.renderForm(c, "Edit Todo", editPath(todo.ID), true, formFromTodo(todo), "")
}

// UpdateHandler はTodoを更新します。
// タイトルが空なら送信された値のままフォームを再表示し、保存はしません。
func (h *TodoHandler) UpdateHandler(c *gin.Context) {
	ident, ok := identity(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var form models.TodoForm
	if err := c.ShouldBind(&form); err != nil {
		RenderError(c, http.StatusBadRequest)
		return
	}

	_, err := h.todoService.UpdateTodo(c.Request.Context(), ident, id, form)
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		h.renderForm(c, "Edit Todo", editPath(id), true, form, verr.Message)
		return
	}
	if err != nil {
		handleServiceError(c, err, "update")
		return
	}
	addFlash(c, h.flash, ident.SessionID, flash.LevelSuccess, "Todo updated successfully!")
	c.Redirect(http.StatusFound, ListPath)
}

// DeleteConfirmHandler は削除確認画面を表示します。ここでは削除しません。
func (h *TodoHandler) DeleteConfirmHandler(c *gin.Context) {
	todo, ok := h.owned(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "todo_delete.html", page(c, h.flash, "Delete Todo", gin.H{"Todo": todo}))
}

// DeleteHandler はTodoを削除します。
func (h *TodoHandler) DeleteHandler(c *gin.Context) {
	ident, ok := identity(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.todoService.DeleteTodo(c.Request.Context(), ident, id); err != nil {
		handleServiceError(c, err, "delete")
		return
	}
	addFlash(c, h.flash, ident.SessionID, flash.LevelSuccess, "Todo deleted successfully!")
	c.Redirect(http.StatusFound, ListPath)
}

// ToggleHandler は完了状態を反転して一覧に戻ります。
func (h *TodoHandler) ToggleHandler(c *gin.Context) {
	ident, ok := identity(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := h.todoService.ToggleTodo(c.Request.Context(), ident, id); err != nil {
		handleServiceError(c, err, "toggle")
		return
	}
	c.Redirect(http.StatusFound, ListPath)
}

// owned は所有者で絞り込んだTodoを取得します。失敗時はレスポンスを書いてfalseを返します。
func (h *TodoHandler) owned(c *gin.Context) (*models.Todo, bool) {
	ident, ok := identity(c)
	if !ok {
		return nil, false
	}
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	todo, err := h.todoService.GetOwned(c.Request.Context(), ident, id)
	if err != nil {
		handleServiceError(c, err, "get")
		return nil, false
	}
	return todo, true
}

func (h *TodoHandler) renderForm(c *gin.Context, title, action string, editing bool, form models.TodoForm, errMsg string) {
	c.HTML(http.StatusOK, "todo_form.html", page(c, h.flash, title, gin.H{
		"Action":  action,
		"Editing": editing,
		"Form":    form,
		"Error":   errMsg,
	}))
}

func editPath(id int) string {
	return fmt.Sprintf("/todos/%d/edit", id)
}
