package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/recipebox/internal/model"
	"github.com/hitoshi/recipebox/internal/user"
)

// errInvalidDateTime はlast_loginがRFC 3339形式でない場合のデコードエラー。
var errInvalidDateTime = errors.New("invalid datetime")

const msgInvalidDateTime = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm[:ss[.uuuuuu]][+HH:MM|-HH:MM|Z]."

// AdminServiceInterface はスタッフ向けユーザー管理のサービスインターフェース。
type AdminServiceInterface interface {
	ListUsers(ctx context.Context) ([]*model.User, error)
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	CreateUser(ctx context.Context, email, password, name string) (*model.User, error)
	UpdateUser(ctx context.Context, userID int64, in user.AdminInput) (*model.User, error)
}

// nullableTime はJSONで「未指定」「null」「日時」を区別する。
type nullableTime struct {
	Set   bool
	Value *time.Time
}

func (t *nullableTime) UnmarshalJSON(data []byte) error {
	t.Set = true
	if bytes.Equal(data, []byte("null")) {
		t.Value = nil
		return nil
	}
	var v time.Time
	if err := json.Unmarshal(data, &v); err != nil {
		return errInvalidDateTime
	}
	t.Value = &v
	return nil
}

type adminCreateRequest struct {
	Email     string `json:"email" validate:"required,notblank,nonul,email,max=255"`
	Password  string `json:"password" validate:"required,nonul,min=5"`
	Password2 string `json:"password2" validate:"required"`
	Name      string `json:"name" validate:"nonul,max=255"`
}

type adminUpdateRequest struct {
	Email       *string      `json:"email" validate:"omitnil,notblank,nonul,email,max=255"`
	Name        *string      `json:"name" validate:"omitnil,nonul,max=255"`
	Password    *string      `json:"password" validate:"omitnil,nonul,min=5"`
	IsActive    *bool        `json:"is_active"`
	IsStaff     *bool        `json:"is_staff"`
	IsSuperuser *bool        `json:"is_superuser"`
	LastLogin   nullableTime `json:"last_login"`
}

func (req adminUpdateRequest) input() user.AdminInput {
	in := user.AdminInput{
		ProfileInput: user.ProfileInput{
			Email:    req.Email,
			Name:     req.Name,
			Password: req.Password,
		},
		IsActive:    req.IsActive,
		IsStaff:     req.IsStaff,
		IsSuperuser: req.IsSuperuser,
	}
	if req.LastLogin.Set {
		if req.LastLogin.Value == nil {
			in.ClearLastLogin = true
		} else {
			in.LastLogin = req.LastLogin.Value
		}
	}
	return in
}

type adminUserResponse struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	LastLogin   *time.Time `json:"last_login"`
}

func toAdminUserResponse(u *model.User) adminUserResponse {
	return adminUserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		LastLogin:   u.LastLogin,
	}
}

// AdminHandler はスタッフ向けのユーザー管理HTTPハンドラー。
// ルーターでスタッフ権限のミドルウェアの内側に置く。
type AdminHandler struct {
	service   AdminServiceInterface
	validator RequestValidator
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface, validator RequestValidator) *AdminHandler {
	return &AdminHandler{service: service, validator: validator}
}

// List は全ユーザーをID昇順で返す。
// GET /admin/users
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]adminUserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toAdminUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create はユーザーを作成する。確認用パスワードが一致しない場合は400。
// POST /admin/users
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req adminCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, err)
		return
	}
	if req.Password != req.Password2 {
		handleServiceError(w, model.NewValidationError("password2", "The two password fields didn't match."))
		return
	}

	u, err := h.service.CreateUser(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAdminUserResponse(u))
}

// Get は指定ユーザーを返す。
// GET /admin/users/{id}
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAdminUserResponse(u))
}

// Patch は指定された項目のみ更新する。
// PATCH /admin/users/{id}
func (h *AdminHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req adminUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, err)
		return
	}

	u, err := h.service.UpdateUser(r.Context(), id, req.input())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAdminUserResponse(u))
}

// userIDParam はURLのユーザーIDを取り出す。整数でない場合は404とする。
func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return 0, false
	}
	return id, true
}
