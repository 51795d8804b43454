// Package handlers はHTML画面のハンドラーを提供します。
package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"go-todo-web/internal/flash"
	"go-todo-web/internal/models"
	"go-todo-web/internal/services"
)

// IdentityKey は認証ミドルウェアがgin.Contextに設定するキーです。
const IdentityKey = "identity"

// ListPath は一覧画面のパスで、作成・更新・削除後のリダイレクト先です。
const ListPath = "/todos/"

// SetIdentity は認証済みユーザーをコンテキストに設定します。
func SetIdentity(c *gin.Context, ident models.Identity) {
	c.Set(IdentityKey, ident)
}

// CurrentIdentity は認証ミドルウェアが設定したユーザーを返します。
func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return models.Identity{}, false
	}
	ident, ok := v.(models.Identity)
	return ident, ok && ident.UserID > 0
}

// page は共通のテンプレート変数 (タイトル、ユーザー、フラッシュメッセージ) を追加します。
func page(c *gin.Context, store flash.Store, title string, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	data["Messages"] = []flash.Message{}
	if ident, ok := CurrentIdentity(c); ok {
		data["User"] = ident
		if store != nil {
			msgs, err := store.Pop(c.Request.Context(), ident.SessionID)
			if err != nil {
				log.WithError(err).Warn("failed to read flash messages")
			} else {
				data["Messages"] = msgs
			}
		}
	}
	return data
}

func addFlash(c *gin.Context, store flash.Store, sessionID, level, text string) {
	if store == nil || sessionID == "" {
		return
	}
	if err := store.Add(c.Request.Context(), sessionID, flash.Message{Level: level, Text: text}); err != nil {
		log.WithError(err).Warn("failed to store flash message")
	}
}

// RenderError はエラーページを描画します。
func RenderError(c *gin.Context, status int) {
	title, detail := "Server Error", "Something went wrong. Please try again later."
	switch status {
	case http.StatusNotFound:
		title, detail = "Not Found", "The requested page could not be found."
	case http.StatusBadRequest:
		title, detail = "Bad Request", "The request could not be understood."
	}
	data := gin.H{"Detail": detail, "Title": title, "Messages": []flash.Message{}}
	if ident, ok := CurrentIdentity(c); ok {
		data["User"] = ident
	}
	c.HTML(status, "error.html", data)
}

// handleServiceError はサービスのエラーをHTTPレスポンスに変換します。
func handleServiceError(c *gin.Context, err error, action string) {
	if errors.Is(err, services.ErrTodoNotFound) {
		RenderError(c, http.StatusNotFound)
		return
	}
	log.WithError(err).WithField("action", action).Error("todo operation failed")
	RenderError(c, http.StatusInternalServerError)
}

// parseID はパスの :id を読みます。数値でなければ404を返し、falseになります。
func parseID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		RenderError(c, http.StatusNotFound)
		return 0, false
	}
	return id, true
}

// SafeNext はログイン後のリダイレクト先を同一サイト内のパスに限定します。
// 完了切り替え (/toggle) はGETでも状態が変わるため、戻り先にはしません。
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ListPath
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ListPath
	}
	if strings.HasSuffix(strings.TrimSuffix(u.Path, "/"), "/toggle") {
		return ListPath
	}
	return next
}

// ClearSessionCookie はセッションCookieを削除します。発行時と同じ Secure / SameSite を使います。
func ClearSessionCookie(c *gin.Context, cookie SessionCookie) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie.Name, "", -1, "/", "", cookie.Secure, true)
}
