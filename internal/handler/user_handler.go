package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/recipebox/internal/model"
	"github.com/hitoshi/recipebox/internal/user"
)

// AuthServiceInterface はユーザー登録とトークン発行に必要なサービスインターフェース。
type AuthServiceInterface interface {
	RegisterUser(ctx context.Context, email, password, name string) (*model.User, error)
	ObtainToken(ctx context.Context, email, password string) (*model.AuthToken, error)
}

// UserServiceInterface は認証済みユーザー自身のプロフィール操作インターフェース。
type UserServiceInterface interface {
	GetProfile(ctx context.Context, userID int64) (*model.User, error)
	UpdateProfile(ctx context.Context, userID int64, in user.ProfileInput) (*model.User, error)
}

// RequestValidator はリクエスト構造体のタグ検証を行う。
type RequestValidator interface {
	Validate(s any) error
}

// userRequest はユーザー作成とプロフィール全体更新（PUT）のリクエスト。
type userRequest struct {
	Email    string `json:"email" validate:"required,notblank,nonul,email,max=255"`
	Password string `json:"password" validate:"required,nonul,min=5"`
	Name     string `json:"name" validate:"required,notblank,nonul,max=255"`
}

// userPatchRequest はプロフィール部分更新（PATCH）のリクエスト。
type userPatchRequest struct {
	Email    *string `json:"email" validate:"omitnil,notblank,nonul,email,max=255"`
	Password *string `json:"password" validate:"omitnil,nonul,min=5"`
	Name     *string `json:"name" validate:"omitnil,notblank,nonul,max=255"`
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{Email: u.Email, Name: u.Name}
}

// UserHandler はユーザー登録、トークン発行、プロフィール管理のHTTPハンドラー。
type UserHandler struct {
	auth      AuthServiceInterface
	service   UserServiceInterface
	validator RequestValidator
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(auth AuthServiceInterface, service UserServiceInterface, validator RequestValidator) *UserHandler {
	return &UserHandler{
		auth:      auth,
		service:   service,
		validator: validator,
	}
}

// Create はユーザーを登録する。
// POST /user/create
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, err)
		return
	}

	u, err := h.auth.RegisterUser(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// Token はメールアドレスとパスワードを検証してトークンを返す。
// POST /user/token
func (h *UserHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	token, err := h.auth.ObtainToken(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token.Key})
}

// Me は認証済みユーザーのプロフィールを返す。
// GET /user/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Update はプロフィールの全項目を置き換える。
// PUT /user/me
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, err)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, user.ProfileInput{
		Email:    &req.Email,
		Name:     &req.Name,
		Password: &req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Patch は指定された項目のみプロフィールを更新する。
// PATCH /user/me
func (h *UserHandler) Patch(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req userPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, err)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, user.ProfileInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}
