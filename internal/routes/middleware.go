package routes

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"go-todo-web/internal/handlers"
	"go-todo-web/internal/services"
)

// RequestIDHeader はリクエストIDを返すヘッダーです。
const RequestIDHeader = "X-Request-ID"

// AuthMiddleware はセッションCookieのJWTを検証し、ユーザー情報をコンテキストに設定するミドルウェアです。
// 未認証の場合は next 付きでログイン画面へリダイレクトし、後続のハンドラーは実行しません。
func AuthMiddleware(jwtService *services.JWTService, cookie handlers.SessionCookie, loginURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookie.Name)
		if err != nil || token == "" {
			redirectToLogin(c, loginURL)
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			log.WithError(err).Debug("invalid session token")
			handlers.ClearSessionCookie(c, cookie)
			redirectToLogin(c, loginURL)
			return
		}

		handlers.SetIdentity(c, claims.Identity())
		c.Next()
	}
}

func redirectToLogin(c *gin.Context, loginURL string) {
	target := loginURL + "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

// RequestLogger はリクエストごとにIDを振り、結果をlogrusで出力します。
func RequestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		c.Next()

		fields := log.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if ident, ok := handlers.CurrentIdentity(c); ok {
			fields["user_id"] = ident.UserID
		}
		entry := logger.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}
