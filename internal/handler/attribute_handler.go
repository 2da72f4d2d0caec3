package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/recipebox/internal/recipe"
)

// Attribute はタグと材料のレスポンス形式。
type Attribute struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AttributeServiceInterface はタグ・材料ハンドラーが必要とするサービスインターフェース。
// タグと材料は同じ形を持つため、ひとつのハンドラーで扱う。
type AttributeServiceInterface interface {
	List(ctx context.Context, userID int64, assignedOnly bool) ([]Attribute, error)
	Create(ctx context.Context, userID int64, name string) (*Attribute, error)
}

type attributeRequest struct {
	Name *string `json:"name" validate:"required,nonul"`
}

// AttributeHandler はタグまたは材料の一覧・作成を行うHTTPハンドラー。
type AttributeHandler struct {
	service   AttributeServiceInterface
	validator RequestValidator
}

// NewAttributeHandler はAttributeHandlerを生成する。
func NewAttributeHandler(service AttributeServiceInterface, validator RequestValidator) *AttributeHandler {
	return &AttributeHandler{
		service:   service,
		validator: validator,
	}
}

// List は認証済みユーザーのタグまたは材料を名前の降順で返す。
// GET /recipe/tags, GET /recipe/ingredients
//
// クエリパラメータ:
//   - assigned_only: 0以外の整数を指定するとレシピに使われているものだけを返す
func (h *AttributeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	assignedOnly, err := recipe.ParseAssignedOnly(r.URL.Query().Get("assigned_only"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	attrs, err := h.service.List(r.Context(), userID, assignedOnly)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if attrs == nil {
		attrs = []Attribute{}
	}

	writeJSON(w, http.StatusOK, attrs)
}

// Create はタグまたは材料を作成する。
// POST /recipe/tags, POST /recipe/ingredients
func (h *AttributeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req attributeRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, err)
		return
	}

	attr, err := h.service.Create(r.Context(), userID, *req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, attr)
}
