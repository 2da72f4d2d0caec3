package handler

import "github.com/hitoshi/recipebox/internal/model"

// recipeView はレシピを返すエンドポイントの種類。
// レスポンス形式はビューだけで決まる。
type recipeView int

const (
	viewList recipeView = iota
	viewDetail
	viewCreate
	viewUpdate
	viewUploadImage
)

// recipeShape はレシピのレスポンス形式。
type recipeShape int

const (
	// shapeSummary はタグと材料をIDの配列で表す。
	shapeSummary recipeShape = iota
	// shapeDetail はタグと材料を {id,name} のオブジェクトで表す。
	shapeDetail
	// shapeImage はIDと画像URLのみを表す。
	shapeImage
)

// shapeFor はビューに対応するレスポンス形式を返す。
func shapeFor(view recipeView) recipeShape {
	switch view {
	case viewDetail:
		return shapeDetail
	case viewUploadImage:
		return shapeImage
	default:
		return shapeSummary
	}
}

// ImageURLBuilder はストレージ相対パスから公開URLを組み立てる。
type ImageURLBuilder interface {
	URL(relPath string) string
}

type recipeSummaryResponse struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Ingredients []int64     `json:"ingredients"`
	Tags        []int64     `json:"tags"`
	TimeMinutes int         `json:"time_minutes"`
	Price       model.Price `json:"price"`
	Link        string      `json:"link"`
}

type recipeDetailResponse struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Ingredients []Attribute `json:"ingredients"`
	Tags        []Attribute `json:"tags"`
	TimeMinutes int         `json:"time_minutes"`
	Price       model.Price `json:"price"`
	Link        string      `json:"link"`
}

type recipeImageResponse struct {
	ID    int64   `json:"id"`
	Image *string `json:"image"`
}

// serializeRecipe はビューに応じたレスポンス形式にレシピを変換する。
func serializeRecipe(r *model.Recipe, view recipeView, urls ImageURLBuilder) any {
	switch shapeFor(view) {
	case shapeDetail:
		return recipeDetailResponse{
			ID:          r.ID,
			Title:       r.Title,
			Ingredients: ingredientAttributes(r.Ingredients),
			Tags:        tagAttributes(r.Tags),
			TimeMinutes: r.TimeMinutes,
			Price:       r.Price,
			Link:        r.Link,
		}
	case shapeImage:
		resp := recipeImageResponse{ID: r.ID}
		if r.Image != nil {
			u := urls.URL(*r.Image)
			resp.Image = &u
		}
		return resp
	default:
		return recipeSummaryResponse{
			ID:          r.ID,
			Title:       r.Title,
			Ingredients: r.IngredientIDs(),
			Tags:        r.TagIDs(),
			TimeMinutes: r.TimeMinutes,
			Price:       r.Price,
			Link:        r.Link,
		}
	}
}

// serializeRecipes は一覧用にレシピを変換する。空の場合も空配列を返す。
func serializeRecipes(recipes []*model.Recipe, view recipeView, urls ImageURLBuilder) []any {
	out := make([]any, len(recipes))
	for i, r := range recipes {
		out[i] = serializeRecipe(r, view, urls)
	}
	return out
}

func tagAttributes(tags []model.Tag) []Attribute {
	out := make([]Attribute, len(tags))
	for i, t := range tags {
		out[i] = Attribute{ID: t.ID, Name: t.Name}
	}
	return out
}

func ingredientAttributes(ingredients []model.Ingredient) []Attribute {
	out := make([]Attribute, len(ingredients))
	for i, ing := range ingredients {
		out[i] = Attribute{ID: ing.ID, Name: ing.Name}
	}
	return out
}
