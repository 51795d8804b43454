// Package modelsはTodoとUserを定義します。
package models

import (
	"time"
)

// Todo は ToDoタスクのデータベース構造体を表します。
// UserID は所有者で、作成後に変更されることはありません。
type Todo struct {
	ID          int       `json:"id,omitempty" gorm:"primaryKey;autoIncrement"`
	UserID      int       `json:"user_id" gorm:"not null;index"`
	Title       string    `json:"title" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"type:text;not null"`
	Completed   bool      `json:"completed" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName はGORMが使うテーブル名を返します。
func (Todo) TableName() string {
	return "todos"
}

// TodoForm は作成・更新フォームから送信される値です。
// titleの必須チェックはサービス層で行い、"Title is required!" を表示します。
type TodoForm struct {
	Title       string `form:"title"`
	Description string `form:"description"`
	Completed   string `form:"completed"` // チェックボックス: 未送信ならfalse
}

// IsCompleted はチェックボックスの値をboolに変換します。
func (f TodoForm) IsCompleted() bool {
	switch f.Completed {
	case "on", "true", "1":
		return true
	}
	return false
}
