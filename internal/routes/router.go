// Package routesはroutingを行います。
package routes

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"go-todo-web/internal/config"
	"go-todo-web/internal/flash"
	"go-todo-web/internal/handlers"
	"go-todo-web/internal/repositories"
	"go-todo-web/internal/services"
	"go-todo-web/internal/views"
)

// Dependencies はルーターが使うストアと設定です。
type Dependencies struct {
	Config   *config.Config
	TodoRepo repositories.TodoRepository
	UserRepo repositories.UserRepository
	Flash    flash.Store
	DB       handlers.Pinger
	Logger   *log.Logger
}

// SetupRouter はGinルーターをセットアップし、すべてのエンドポイントを登録します。
func SetupRouter(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	tmpl, err := views.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	// CORS対策
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// サービス
	todoService := services.NewTodoService(deps.TodoRepo)
	userService := services.NewUserService(deps.UserRepo)
	jwtService := services.NewJWTService(cfg.Session.JWTSecret, cfg.Session.TTL)

	// ハンドラー
	todoHandler := handlers.NewTodoHandler(todoService, deps.Flash)
	sessionCookie := handlers.SessionCookie{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
	}
	userHandler := handlers.NewUserHandler(userService, jwtService, deps.Flash, sessionCookie, cfg.Session.LoginURL)

	r.NoRoute(func(c *gin.Context) { handlers.RenderError(c, http.StatusNotFound) })

	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, handlers.ListPath) })
	if deps.DB != nil {
		r.GET("/api/health", handlers.HealthHandler(deps.DB))
	}

	// アカウント
	r.GET(cfg.Session.LoginURL, userHandler.LoginPageHandler)
	r.POST(cfg.Session.LoginURL, userHandler.LoginHandler)
	r.GET("/accounts/logout/", userHandler.LogoutHandler)
	r.POST("/accounts/logout/", userHandler.LogoutHandler)
	r.GET("/accounts/register/", userHandler.RegisterPageHandler)
	r.POST("/accounts/register/", userHandler.RegisterHandler)

	authorized := r.Group("/todos")
	authorized.Use(AuthMiddleware(jwtService, sessionCookie, cfg.Session.LoginURL))
	{
		authorized.GET("/", todoHandler.ListHandler)
		authorized.GET("/new", todoHandler.NewHandler)
		authorized.POST("/new", todoHandler.CreateHandler)
		authorized.GET("/:id", todoHandler.DetailHandler)
		authorized.GET("/:id/edit", todoHandler.EditHandler)
		authorized.POST("/:id/edit", todoHandler.UpdateHandler)
		authorized.GET("/:id/delete", todoHandler.DeleteConfirmHandler)
		authorized.POST("/:id/delete", todoHandler.DeleteHandler)
		// GET は既存リンクとの互換用。画面からは POST で送信します。
		authorized.GET("/:id/toggle", todoHandler.ToggleHandler)
		authorized.POST("/:id/toggle", todoHandler.ToggleHandler)
	}

	return r, nil
}
