package models

import "time"

// User はユーザーのデータベース構造体を表します。
type User struct {
	ID           int       `json:"id,omitempty" gorm:"primaryKey;autoIncrement"`
	Username     string    `json:"username" gorm:"size:255;not null;uniqueIndex"`
	Email        string    `json:"email" gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // JSONに出さない
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName はGORMが使うテーブル名を返します。
func (User) TableName() string {
	return "users"
}

type UserRegisterRequest struct {
	Username string `form:"username" binding:"required,max=150"`
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required,min=8"` // 生パスワード
}

type UserLoginRequest struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"` // 生パスワード
	Next     string `form:"next"`
}

// Identity はリクエストを行った認証済みユーザーです。
// サービスの各操作には明示的に渡されます。
type Identity struct {
	UserID    int
	Email     string
	SessionID string
}

// SessionClaims はセッショントークンから取り出した値です。
type SessionClaims struct {
	UserID    uint   `json:"user_id"`
	Email     string `json:"email"`
	SessionID string `json:"sid"`
}

// Identity はクレームからIdentityを作ります。
func (c *SessionClaims) Identity() Identity {
	return Identity{UserID: int(c.UserID), Email: c.Email, SessionID: c.SessionID}
}
