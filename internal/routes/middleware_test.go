package routes_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-todo-web/internal/handlers"
	"go-todo-web/internal/models"
	"go-todo-web/internal/routes"
	"go-todo-web/internal/services"
	"go-todo-web/testutil"
)

const loginURL = "/accounts/login/"

func protectedRouter(jwtService *services.JWTService) *gin.Engine {
	return protectedRouterWithCookie(jwtService, handlers.SessionCookie{Name: "todo_session"})
}

func protectedRouterWithCookie(jwtService *services.JWTService, cookie handlers.SessionCookie) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(routes.AuthMiddleware(jwtService, cookie, loginURL))
	r.GET("/todos/", func(c *gin.Context) {
		ident, ok := handlers.CurrentIdentity(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": ident.UserID, "email": ident.Email})
	})
	return r
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	jwtService := services.NewJWTService("secret", time.Hour)
	token, claims, err := jwtService.GenerateToken(&models.User{ID: 7, Email: "normal_user@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, claims.SessionID)

	req := httptest.NewRequest(http.MethodGet, "/todos/", nil)
	req.AddCookie(&http.Cookie{Name: "todo_session", Value: token})
	w := httptest.NewRecorder()
	protectedRouter(jwtService).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7,"email":"normal_user@example.com"}`, w.Body.String())
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	jwtService := services.NewJWTService("secret", time.Hour)
	forged, _, err := services.NewJWTService("other-secret", time.Hour).GenerateToken(&models.User{ID: 7})
	require.NoError(t, err)

	for name, token := range map[string]string{"garbage": "invalid.jwt.token", "wrong key": forged} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/todos/", nil)
			req.AddCookie(&http.Cookie{Name: "todo_session", Value: token})
			w := httptest.NewRecorder()
			protectedRouter(jwtService).ServeHTTP(w, req)

			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, loginURL+"?next="+url.QueryEscape("/todos/"), w.Header().Get("Location"))
			require.NotEmpty(t, w.Result().Cookies(), "不正なCookieは削除されること")
			assert.Empty(t, w.Result().Cookies()[0].Value)
		})
	}
}

func TestAuthMiddleware_InvalidTokenClearsCookieWithSessionSettings(t *testing.T) {
	jwtService := services.NewJWTService("secret", time.Hour)
	r := protectedRouterWithCookie(jwtService, handlers.SessionCookie{Name: "todo_session", Secure: true})

	req := httptest.NewRequest(http.MethodGet, "/todos/", nil)
	req.AddCookie(&http.Cookie{Name: "todo_session", Value: "invalid.jwt.token"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "todo_session", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
	assert.True(t, cookies[0].Secure, "COOKIE_SECURE を削除時にも使うこと")
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	jwtService := services.NewJWTService("secret", time.Hour)

	w := httptest.NewRecorder()
	protectedRouter(jwtService).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/todos/?page=2", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, loginURL+"?next="+url.QueryEscape("/todos/?page=2"), w.Header().Get("Location"))
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, hook := test.NewNullLogger()

	r := gin.New()
	r.Use(routes.RequestLogger(logger))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	requestID := w.Header().Get(routes.RequestIDHeader)
	assert.Len(t, requestID, 36)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.InfoLevel, entry.Level)
	assert.Equal(t, "/ok", entry.Data["path"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])
	assert.Equal(t, requestID, entry.Data["request_id"])

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(routes.RequestIDHeader, "3f1c1d7e-0c39-4c55-9a0e-1f0e4c3b2a10")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "3f1c1d7e-0c39-4c55-9a0e-1f0e4c3b2a10", w.Header().Get(routes.RequestIDHeader))
	assert.Equal(t, log.ErrorLevel, hook.LastEntry().Level)
	assert.Len(t, hook.AllEntries(), 2)
}

func TestRouter_RootAndNotFound(t *testing.T) {
	app := testutil.SetupTestApp(t)

	w := testutil.Get(app.Router, "/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/todos/", w.Header().Get("Location"))

	w = testutil.Get(app.Router, "/no/such/page", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Not Found")
}

func TestRouter_ProtectedRoutesRequireLogin(t *testing.T) {
	app := testutil.SetupTestApp(t)

	paths := []string{"/todos/", "/todos/new", "/todos/1", "/todos/1/edit", "/todos/1/delete", "/todos/1/toggle"}
	for _, path := range paths {
		w := testutil.Get(app.Router, path, nil)
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/accounts/login/?next="+url.QueryEscape(path), w.Header().Get("Location"), path)
	}
}
