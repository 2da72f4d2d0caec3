package handler

import (
	"context"

	"github.com/hitoshi/recipebox/internal/auth"
	"github.com/hitoshi/recipebox/internal/model"
	"github.com/hitoshi/recipebox/internal/recipe"
	"github.com/hitoshi/recipebox/internal/user"
)

// AuthServiceAdapter は auth.Service を AuthServiceInterface に適合させるアダプタ。
type AuthServiceAdapter struct {
	svc *auth.Service
}

// NewAuthServiceAdapter はAuthServiceAdapterを生成する。
func NewAuthServiceAdapter(svc *auth.Service) *AuthServiceAdapter {
	return &AuthServiceAdapter{svc: svc}
}

// RegisterUser は一般ユーザーを作成する。
func (a *AuthServiceAdapter) RegisterUser(ctx context.Context, email, password, name string) (*model.User, error) {
	return a.svc.CreateUser(ctx, email, password, auth.UserFields{Name: name})
}

// ObtainToken は資格情報を検証してトークンを返す。
func (a *AuthServiceAdapter) ObtainToken(ctx context.Context, email, password string) (*model.AuthToken, error) {
	return a.svc.ObtainToken(ctx, email, password)
}

// TagServiceAdapter は recipe.TagService を AttributeServiceInterface に適合させるアダプタ。
type TagServiceAdapter struct {
	svc *recipe.TagService
}

// NewTagServiceAdapter はTagServiceAdapterを生成する。
func NewTagServiceAdapter(svc *recipe.TagService) *TagServiceAdapter {
	return &TagServiceAdapter{svc: svc}
}

// List はタグ一覧をhandlerレスポンス型で返す。
func (a *TagServiceAdapter) List(ctx context.Context, userID int64, assignedOnly bool) ([]Attribute, error) {
	tags, err := a.svc.List(ctx, userID, assignedOnly)
	if err != nil {
		return nil, err
	}
	return tagAttributes(tags), nil
}

// Create はタグを作成しhandlerレスポンス型で返す。
func (a *TagServiceAdapter) Create(ctx context.Context, userID int64, name string) (*Attribute, error) {
	tag, err := a.svc.Create(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	return &Attribute{ID: tag.ID, Name: tag.Name}, nil
}

// IngredientServiceAdapter は recipe.IngredientService を AttributeServiceInterface に適合させるアダプタ。
type IngredientServiceAdapter struct {
	svc *recipe.IngredientService
}

// NewIngredientServiceAdapter はIngredientServiceAdapterを生成する。
func NewIngredientServiceAdapter(svc *recipe.IngredientService) *IngredientServiceAdapter {
	return &IngredientServiceAdapter{svc: svc}
}

// List は材料一覧をhandlerレスポンス型で返す。
func (a *IngredientServiceAdapter) List(ctx context.Context, userID int64, assignedOnly bool) ([]Attribute, error) {
	ingredients, err := a.svc.List(ctx, userID, assignedOnly)
	if err != nil {
		return nil, err
	}
	return ingredientAttributes(ingredients), nil
}

// Create は材料を作成しhandlerレスポンス型で返す。
func (a *IngredientServiceAdapter) Create(ctx context.Context, userID int64, name string) (*Attribute, error) {
	ingredient, err := a.svc.Create(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	return &Attribute{ID: ingredient.ID, Name: ingredient.Name}, nil
}

// AdminServiceAdapter は user.Service と auth.Service を AdminServiceInterface に適合させるアダプタ。
type AdminServiceAdapter struct {
	users *user.Service
	auth  *auth.Service
}

// NewAdminServiceAdapter はAdminServiceAdapterを生成する。
func NewAdminServiceAdapter(users *user.Service, authSvc *auth.Service) *AdminServiceAdapter {
	return &AdminServiceAdapter{users: users, auth: authSvc}
}

// ListUsers は全ユーザーを返す。
func (a *AdminServiceAdapter) ListUsers(ctx context.Context) ([]*model.User, error) {
	return a.users.ListUsers(ctx)
}

// GetUser は指定ユーザーを返す。
func (a *AdminServiceAdapter) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return a.users.GetProfile(ctx, userID)
}

// CreateUser は一般ユーザーを作成する。権限フラグは作成後にUpdateUserで付与する。
func (a *AdminServiceAdapter) CreateUser(ctx context.Context, email, password, name string) (*model.User, error) {
	return a.auth.CreateUser(ctx, email, password, auth.UserFields{Name: name})
}

// UpdateUser は指定ユーザーを更新する。
func (a *AdminServiceAdapter) UpdateUser(ctx context.Context, userID int64, in user.AdminInput) (*model.User, error) {
	return a.users.UpdateUser(ctx, userID, in)
}

// compile-time interface check
var (
	_ AdminServiceInterface     = (*AdminServiceAdapter)(nil)
	_ AuthServiceInterface      = (*AuthServiceAdapter)(nil)
	_ AttributeServiceInterface = (*TagServiceAdapter)(nil)
	_ AttributeServiceInterface = (*IngredientServiceAdapter)(nil)
)
