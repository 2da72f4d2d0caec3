// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// UnusablePasswordPrefix は認証に使用できないパスワードハッシュの接頭辞。
// パスワードなしで作成された招待ユーザー等に設定する。
const UnusablePasswordPrefix = "!"

// User はサービス利用ユーザーを表す。
// メールアドレスが一意な識別子となる。
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasUsablePassword はパスワードハッシュが認証に使用可能かを返す。
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != "" && !strings.HasPrefix(u.PasswordHash, UnusablePasswordPrefix)
}

// AuthToken はユーザーに1対1で紐付く不透明なBearerトークンを表す。
type AuthToken struct {
	Key       string
	UserID    int64
	CreatedAt time.Time
}
