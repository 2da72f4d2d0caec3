package model

import "time"

// Tag はユーザーが所有するレシピの分類タグを表す。
// 作成後に所有ユーザーは変更されない。
type Tag struct {
	ID        int64
	UserID    int64
	Name      string
	CreatedAt time.Time
}

// Ingredient はユーザーが所有する材料を表す。
// 作成後に所有ユーザーは変更されない。
type Ingredient struct {
	ID        int64
	UserID    int64
	Name      string
	CreatedAt time.Time
}

// Recipe はユーザーが所有するレシピを表す。
// Tags と Ingredients は多対多の関連として保持する。
type Recipe struct {
	ID          int64
	UserID      int64
	Title       string
	TimeMinutes int
	Price       Price
	Link        string
	Image       *string // ストレージ相対パス（例: uploads/recipe/<uuid>.jpg）
	Tags        []Tag
	Ingredients []Ingredient
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TagIDs は関連付けられたタグのID一覧を返す。
func (r *Recipe) TagIDs() []int64 {
	ids := make([]int64, len(r.Tags))
	for i, t := range r.Tags {
		ids[i] = t.ID
	}
	return ids
}

// IngredientIDs は関連付けられた材料のID一覧を返す。
func (r *Recipe) IngredientIDs() []int64 {
	ids := make([]int64, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		ids[i] = ing.ID
	}
	return ids
}

// RecipeFilter はレシピ一覧の絞り込み条件を表す。
// 各次元の中はOR、次元間はANDで評価する。空スライスは絞り込みなしを意味する。
type RecipeFilter struct {
	TagIDs        []int64
	IngredientIDs []int64
}
