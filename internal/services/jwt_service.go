package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-todo-web/internal/models"
)

// JWTService はセッションCookieに入れるJWTトークンの生成と検証を扱います。
type JWTService struct {
	secret []byte
	ttl    time.Duration
}

// sessionClaims JWTクレームの構造体
type sessionClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// NewJWTService は新しいJWTServiceを作成します。
func NewJWTService(secret string, ttl time.Duration) *JWTService {
	return &JWTService{secret: []byte(secret), ttl: ttl}
}

// TTL はトークンの有効期間です。Cookieの MaxAge にも使います。
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// GenerateToken はJWTトークンを生成します。ログインごとに新しいセッションIDを割り当てます。
func (s *JWTService) GenerateToken(user *models.User) (string, *models.SessionClaims, error) {
	now := time.Now()
	sid := uuid.NewString()
	claims := &sessionClaims{
		UserID: uint(user.ID),
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sid,
			Subject:   strconv.Itoa(user.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return tokenString, &models.SessionClaims{UserID: claims.UserID, Email: claims.Email, SessionID: sid}, nil
}

// ValidateToken はJWTトークンを検証し、クレームを返します。
func (s *JWTService) ValidateToken(tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == 0 || claims.ID == "" {
		return nil, errors.New("invalid token claims")
	}
	return &models.SessionClaims{UserID: claims.UserID, Email: claims.Email, SessionID: claims.ID}, nil
}
