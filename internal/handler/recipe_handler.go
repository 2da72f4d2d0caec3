package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/recipebox/internal/model"
	"github.com/hitoshi/recipebox/internal/recipe"
)

// multipartOverhead はmultipartの境界やヘッダー分としてボディ上限に加える余裕。
const multipartOverhead = 1 << 20

// RecipeServiceInterface はレシピハンドラーが必要とするサービスインターフェース。
type RecipeServiceInterface interface {
	List(ctx context.Context, userID int64, filter model.RecipeFilter) ([]*model.Recipe, error)
	Get(ctx context.Context, userID, id int64) (*model.Recipe, error)
	Create(ctx context.Context, userID int64, in recipe.Input) (*model.Recipe, error)
	Update(ctx context.Context, userID, id int64, in recipe.Input, partial bool) (*model.Recipe, error)
	Delete(ctx context.Context, userID, id int64) error
	UploadImage(ctx context.Context, userID, id int64, filename string, r io.Reader) (*model.Recipe, error)
}

// recipeRequest はレシピ作成・更新のリクエスト。
// 必須項目の判定は作成・全体更新・部分更新で異なるためサービス層で行う。
type recipeRequest struct {
	Title       *string      `json:"title" validate:"omitnil,nonul,max=255"`
	TimeMinutes *int         `json:"time_minutes" validate:"omitnil,gte=0,lte=2147483647"`
	Price       *model.Price `json:"price"`
	Link        *string      `json:"link" validate:"omitnil,nonul,max=255"`
	Tags        *[]int64     `json:"tags"`
	Ingredients *[]int64     `json:"ingredients"`
}

func (req recipeRequest) input() recipe.Input {
	return recipe.Input{
		Title:         req.Title,
		TimeMinutes:   req.TimeMinutes,
		Price:         req.Price,
		Link:          req.Link,
		TagIDs:        req.Tags,
		IngredientIDs: req.Ingredients,
	}
}

// RecipeHandler はレシピのHTTPハンドラー。
type RecipeHandler struct {
	service      RecipeServiceInterface
	validator    RequestValidator
	urls         ImageURLBuilder
	maxImageSize int64
}

// NewRecipeHandler はRecipeHandlerを生成する。
// maxImageSizeが0以下の場合はrecipe.DefaultMaxImageSizeを使う。
func NewRecipeHandler(service RecipeServiceInterface, validator RequestValidator, urls ImageURLBuilder, maxImageSize int64) *RecipeHandler {
	if maxImageSize <= 0 {
		maxImageSize = recipe.DefaultMaxImageSize
	}
	return &RecipeHandler{
		service:      service,
		validator:    validator,
		urls:         urls,
		maxImageSize: maxImageSize,
	}
}

// List は認証済みユーザーのレシピ一覧を返す。
// GET /recipe/recipes
//
// クエリパラメータ:
//   - tags: カンマ区切りのタグID（いずれかを持つレシピ）
//   - ingredients: カンマ区切りの材料ID（いずれかを持つレシピ）
func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter, err := recipe.ParseFilter(q.Get("tags"), q.Get("ingredients"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	recipes, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, serializeRecipes(recipes, viewList, h.urls))
}

// Create はレシピを作成する。所有者は常にリクエストユーザーになる。
// POST /recipe/recipes
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeRecipeRequest(w, r)
	if !ok {
		return
	}

	created, err := h.service.Create(r.Context(), userID, req.input())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, serializeRecipe(created, viewCreate, h.urls))
}

// Get はレシピの詳細を返す。
// GET /recipe/recipes/{id}
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := recipeIDParam(w, r)
	if !ok {
		return
	}

	rec, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, serializeRecipe(rec, viewDetail, h.urls))
}

// Update はレシピの全項目を置き換える。
// PUT /recipe/recipes/{id}
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// Patch は指定された項目のみレシピを更新する。
// PATCH /recipe/recipes/{id}
func (h *RecipeHandler) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *RecipeHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := recipeIDParam(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeRecipeRequest(w, r)
	if !ok {
		return
	}

	updated, err := h.service.Update(r.Context(), userID, id, req.input(), partial)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, serializeRecipe(updated, viewUpdate, h.urls))
}

// Delete はレシピを削除する。
// DELETE /recipe/recipes/{id}
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := recipeIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadImage はmultipartの "image" フィールドで受け取った画像をレシピに添付する。
// POST /recipe/recipes/{id}/upload-image
func (h *RecipeHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := recipeIDParam(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageSize+multipartOverhead)
	file, header, err := r.FormFile("image")
	if err != nil {
		handleServiceError(w, h.formFileError(err))
		return
	}
	defer file.Close()

	rec, err := h.service.UploadImage(r.Context(), userID, id, header.Filename, file)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, serializeRecipe(rec, viewUploadImage, h.urls))
}

func (h *RecipeHandler) formFileError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return model.NewValidationError("image",
			fmt.Sprintf("Ensure the file size is no more than %d bytes.", h.maxImageSize))
	case errors.Is(err, http.ErrMissingFile):
		return model.NewValidationError("image", "No file was submitted.")
	default:
		return model.NewValidationError("image",
			"The submitted data was not a file. Check the encoding type on the form.")
	}
}

func (h *RecipeHandler) decodeRecipeRequest(w http.ResponseWriter, r *http.Request) (recipeRequest, bool) {
	var req recipeRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return req, false
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, err)
		return req, false
	}
	return req, true
}

// recipeIDParam はURLパスのレシピIDを取り出す。整数でない場合は404を書き込む。
func recipeIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewRecipeNotFoundError(raw))
		return 0, false
	}
	return id, true
}
