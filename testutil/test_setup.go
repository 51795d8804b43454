// Package testutil はHTTPレベルのテストで使うアプリケーション一式を組み立てます。
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-todo-web/internal/config"
	"go-todo-web/internal/database"
	"go-todo-web/internal/flash"
	"go-todo-web/internal/models"
	"go-todo-web/internal/repositories"
	"go-todo-web/internal/routes"
)

// 初期ユーザー
const (
	NormalUserEmail    = "normal_user@example.com"
	NormalUserPassword = "password123"
	OtherUserEmail     = "other_user@example.com"
	OtherUserPassword  = "otherpass123"
)

// TestApp はテスト用に組み立てたルーターとストアです。
type TestApp struct {
	Router     *gin.Engine
	DB         *gorm.DB
	TodoRepo   *repositories.GormTodoRepository
	UserRepo   *repositories.GormUserRepository
	Flash      *flash.RedisStore
	Redis      *miniredis.Miniredis
	Config     *config.Config
	NormalUser *models.User
	OtherUser  *models.User
}

// SetupTestApp はインメモリSQLiteとminiredisでアプリケーションを起動し、テストユーザーを2人作成します。
func SetupTestApp(t *testing.T) *TestApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(":memory:", logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := config.Default()
	cfg.Session.JWTSecret = "test-secret"

	app := &TestApp{
		DB:       db,
		TodoRepo: repositories.NewGormTodoRepository(db),
		UserRepo: repositories.NewGormUserRepository(db),
		Flash:    flash.NewRedisStore(client, cfg.Redis.FlashTTL),
		Redis:    mr,
		Config:   cfg,
	}

	app.Router, err = routes.SetupRouter(routes.Dependencies{
		Config:   cfg,
		TodoRepo: app.TodoRepo,
		UserRepo: app.UserRepo,
		Flash:    app.Flash,
		DB:       sqlDB,
	})
	require.NoError(t, err)

	app.NormalUser = CreateTestUser(t, app.UserRepo, "normal_user", NormalUserEmail, NormalUserPassword)
	app.OtherUser = CreateTestUser(t, app.UserRepo, "other_user", OtherUserEmail, OtherUserPassword)
	return app
}

// CreateTestUser はパスワードをハッシュ化してユーザーを保存します。
func CreateTestUser(t *testing.T, userRepo repositories.UserRepository, username, email, password string) *models.User {
	t.Helper()
	hashedPassword, err := repositories.HashPassword(password)
	require.NoError(t, err)

	createdUser, err := userRepo.Create(context.Background(), &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
	})
	require.NoError(t, err)
	require.NotZero(t, createdUser.ID)
	return createdUser
}

// CreateTestTodo はリポジトリ経由でTODOを直接保存します。
func CreateTestTodo(t *testing.T, todoRepo repositories.TodoRepository, userID int, title string, completed bool) *models.Todo {
	t.Helper()
	now := time.Now()
	created, err := todoRepo.Create(context.Background(), &models.Todo{
		UserID:    userID,
		Title:     title,
		Completed: completed,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	return created
}

// LoginAndGetCookie はログインフォームを送信し、セッションCookieを返します。
func LoginAndGetCookie(t *testing.T, router *gin.Engine, email, password string) *http.Cookie {
	t.Helper()
	w := PostForm(router, "/accounts/login/", url.Values{"email": {email}, "password": {password}}, nil)
	require.Equal(t, http.StatusFound, w.Code, "ログインに失敗しました: %s", w.Body.String())

	for _, c := range w.Result().Cookies() {
		if c.Name == config.Default().Session.CookieName && c.Value != "" {
			return c
		}
	}
	t.Fatalf("session cookie not set")
	return nil
}

// Get はGETリクエストを送信します。cookie が nil の場合は未認証として送ります。
func Get(router *gin.Engine, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// PostForm はフォームをPOSTします。
func PostForm(router *gin.Engine, path string, values url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
