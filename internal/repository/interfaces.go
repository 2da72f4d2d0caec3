// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/recipebox/internal/model"
)

var (
	// ErrNotFound は対象レコードが存在しない、または所有者が異なることを表す。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDとタイムスタンプをuserに設定する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザーのプロフィール・権限フラグ・最終ログイン日時を更新する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Update(ctx context.Context, user *model.User) error

	// UpdateLastLogin は最終ログイン日時を更新する。
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error

	// List は全ユーザーをID昇順で返す。
	List(ctx context.Context) ([]*model.User, error)
}

// TokenRepository は認証トークンの永続化インターフェース。
// トークンはユーザーごとに最大1件。
type TokenRepository interface {
	// FindByKey はキーでトークンを取得する。見つからない場合はnilを返す。
	FindByKey(ctx context.Context, key string) (*model.AuthToken, error)

	// GetOrCreate はユーザーの既存トークンを返す。存在しなければtokenを保存して返す。
	GetOrCreate(ctx context.Context, token *model.AuthToken) (*model.AuthToken, error)
}

// TagRepository はタグの永続化インターフェース。
type TagRepository interface {
	// ListByUser はユーザーのタグを名前の降順で返す。
	// assignedOnlyがtrueの場合、1件以上のレシピに関連付けられたタグのみを返す。
	ListByUser(ctx context.Context, userID int64, assignedOnly bool) ([]model.Tag, error)

	// Create はタグを作成する。
	Create(ctx context.Context, tag *model.Tag) error

	// OwnedIDs はidsのうちuserIDが所有するIDを返す。
	OwnedIDs(ctx context.Context, userID int64, ids []int64) ([]int64, error)
}

// IngredientRepository は材料の永続化インターフェース。
type IngredientRepository interface {
	// ListByUser はユーザーの材料を名前の降順で返す。
	// assignedOnlyがtrueの場合、1件以上のレシピに関連付けられた材料のみを返す。
	ListByUser(ctx context.Context, userID int64, assignedOnly bool) ([]model.Ingredient, error)

	// Create は材料を作成する。
	Create(ctx context.Context, ingredient *model.Ingredient) error

	// OwnedIDs はidsのうちuserIDが所有するIDを返す。
	OwnedIDs(ctx context.Context, userID int64, ids []int64) ([]int64, error)
}

// RecipeUpdateOptions はレシピ更新時に関連を置き換えるかどうかを指定する。
type RecipeUpdateOptions struct {
	ReplaceTags        bool
	ReplaceIngredients bool
}

// RecipeRepository はレシピとその関連の永続化インターフェース。
type RecipeRepository interface {
	// List はユーザーのレシピをID降順で返す。タグと材料も読み込む。
	// filterの各次元の中はOR、次元間はANDで評価し、重複は含まない。
	List(ctx context.Context, userID int64, filter model.RecipeFilter) ([]*model.Recipe, error)

	// FindByIDAndUser はユーザーが所有するレシピを取得する。見つからない場合はnilを返す。
	FindByIDAndUser(ctx context.Context, id, userID int64) (*model.Recipe, error)

	// Create はレシピと関連を同一トランザクションで作成する。
	Create(ctx context.Context, recipe *model.Recipe) error

	// Update はレシピのスカラー項目を更新し、optsに応じて関連を置き換える。
	// 画像パスは変更しない。
	Update(ctx context.Context, recipe *model.Recipe, opts RecipeUpdateOptions) error

	// Delete はユーザーが所有するレシピを削除する。見つからない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id, userID int64) error

	// UpdateImage はレシピの画像パスを更新する。見つからない場合はErrNotFoundを返す。
	UpdateImage(ctx context.Context, id, userID int64, image string) error

	// ListImagePaths は参照されている全ての画像パスを返す。
	ListImagePaths(ctx context.Context) ([]string, error)
}
