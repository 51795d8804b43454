package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"go-todo-web/internal/flash"
	"go-todo-web/internal/models"
	"go-todo-web/internal/repositories"
	"go-todo-web/internal/services"
)

const (
	msgInvalidLogin    = "Invalid email or password."
	msgInvalidRegister = "Please enter a username, a valid email and a password of at least 8 characters."
	msgDuplicateUser   = "Username or email already exists"
)

// SessionCookie はセッションCookieの設定です。
type SessionCookie struct {
	Name   string
	Secure bool
}

// UserHandler はログイン・登録・ログアウトを管理します。
type UserHandler struct {
	userService *services.UserService
	jwtService  *services.JWTService
	flash       flash.Store
	cookie      SessionCookie
	loginURL    string
}

// NewUserHandler は新しいUserHandlerを作成します。
func NewUserHandler(userService *services.UserService, jwtService *services.JWTService, flashStore flash.Store, cookie SessionCookie, loginURL string) *UserHandler {
	return &UserHandler{
		userService: userService,
		jwtService:  jwtService,
		flash:       flashStore,
		cookie:      cookie,
		loginURL:    loginURL,
	}
}

// LoginPageHandler はログインフォームを表示します。
func (h *UserHandler) LoginPageHandler(c *gin.Context) {
	h.renderLogin(c, http.StatusOK, c.Query("next"), "", "")
}

// LoginHandler はユーザーログインを処理し、成功した場合はセッションCookieを発行します。
func (h *UserHandler) LoginHandler(c *gin.Context) {
	var req models.UserLoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderLogin(c, http.StatusOK, c.PostForm("next"), c.PostForm("email"), msgInvalidLogin)
		return
	}

	user, err := h.userService.AuthenticateUser(c.Request.Context(), req)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidCredentials) {
			log.WithError(err).Error("login failed")
			RenderError(c, http.StatusInternalServerError)
			return
		}
		h.renderLogin(c, http.StatusOK, req.Next, req.Email, msgInvalidLogin)
		return
	}

	if _, ok := h.startSession(c, user); !ok {
		return
	}
	c.Redirect(http.StatusFound, SafeNext(req.Next))
}

// LogoutHandler はセッションCookieとフラッシュメッセージを破棄します。
func (h *UserHandler) LogoutHandler(c *gin.Context) {
	if token, err := c.Cookie(h.cookie.Name); err == nil && token != "" {
		if claims, err := h.jwtService.ValidateToken(token); err == nil && h.flash != nil {
			if err := h.flash.Clear(c.Request.Context(), claims.SessionID); err != nil {
				log.WithError(err).Warn("failed to clear flash messages")
			}
		}
	}
	h.ClearCookie(c)
	c.Redirect(http.StatusFound, h.loginURL)
}

// RegisterPageHandler は登録フォームを表示します。
func (h *UserHandler) RegisterPageHandler(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", page(c, nil, "Create an account", gin.H{
		"Form":  models.UserRegisterRequest{},
		"Error": "",
	}))
}

// RegisterHandler はユーザー登録を処理し、そのままログインさせます。
func (h *UserHandler) RegisterHandler(c *gin.Context) {
	var req models.UserRegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderRegister(c, req, msgInvalidRegister)
		return
	}

	user, err := h.userService.RegisterUser(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			h.renderRegister(c, req, msgDuplicateUser)
			return
		}
		log.WithError(err).Error("failed to register user")
		RenderError(c, http.StatusInternalServerError)
		return
	}

	claims, ok := h.startSession(c, user)
	if !ok {
		return
	}
	addFlash(c, h.flash, claims.SessionID, flash.LevelSuccess, "Account created successfully!")
	c.Redirect(http.StatusFound, ListPath)
}

func (h *UserHandler) startSession(c *gin.Context, user *models.User) (*models.SessionClaims, bool) {
	token, claims, err := h.jwtService.GenerateToken(user)
	if err != nil {
		log.WithError(err).Error("failed to generate session token")
		RenderError(c, http.StatusInternalServerError)
		return nil, false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, int(h.jwtService.TTL().Seconds()), "/", "", h.cookie.Secure, true)
	log.WithField("user_id", user.ID).Info("user logged in")
	return claims, true
}

// ClearCookie はセッションCookieを削除します。
func (h *UserHandler) ClearCookie(c *gin.Context) {
	ClearSessionCookie(c, h.cookie)
}

func (h *UserHandler) renderLogin(c *gin.Context, status int, next, email, errMsg string) {
	c.HTML(status, "login.html", page(c, nil, "Log in", gin.H{
		"Action": h.loginURL,
		"Next":   next,
		"Email":  email,
		"Error":  errMsg,
	}))
}

func (h *UserHandler) renderRegister(c *gin.Context, req models.UserRegisterRequest, errMsg string) {
	req.Password = ""
	c.HTML(http.StatusOK, "register.html", page(c, nil, "Create an account", gin.H{
		"Form":  req,
		"Error": errMsg,
	}))
}
