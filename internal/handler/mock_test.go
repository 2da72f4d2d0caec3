package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/recipebox/internal/middleware"
	"github.com/hitoshi/recipebox/internal/model"
	"github.com/hitoshi/recipebox/internal/recipe"
	"github.com/hitoshi/recipebox/internal/user"
	"github.com/hitoshi/recipebox/internal/validation"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerUserFn func(ctx context.Context, email, password, name string) (*model.User, error)
	obtainTokenFn  func(ctx context.Context, email, password string) (*model.AuthToken, error)
}

func (m *mockAuthService) RegisterUser(ctx context.Context, email, password, name string) (*model.User, error) {
	if m.registerUserFn != nil {
		return m.registerUserFn(ctx, email, password, name)
	}
	return &model.User{ID: 1, Email: email, Name: name}, nil
}

func (m *mockAuthService) ObtainToken(ctx context.Context, email, password string) (*model.AuthToken, error) {
	if m.obtainTokenFn != nil {
		return m.obtainTokenFn(ctx, email, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	getProfileFn    func(ctx context.Context, userID int64) (*model.User, error)
	updateProfileFn func(ctx context.Context, userID int64, in user.ProfileInput) (*model.User, error)
}

func (m *mockUserService) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, userID)
	}
	return nil, model.NewUserNotFoundError()
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID int64, in user.ProfileInput) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, in)
	}
	return nil, model.NewUserNotFoundError()
}

// mockAttributeService はAttributeServiceInterfaceのモック実装。
type mockAttributeService struct {
	listFn   func(ctx context.Context, userID int64, assignedOnly bool) ([]Attribute, error)
	createFn func(ctx context.Context, userID int64, name string) (*Attribute, error)
}

func (m *mockAttributeService) List(ctx context.Context, userID int64, assignedOnly bool) ([]Attribute, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, assignedOnly)
	}
	return nil, nil
}

func (m *mockAttributeService) Create(ctx context.Context, userID int64, name string) (*Attribute, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, name)
	}
	return &Attribute{ID: 1, Name: name}, nil
}

// mockRecipeService はRecipeServiceInterfaceのモック実装。
type mockRecipeService struct {
	listFn        func(ctx context.Context, userID int64, filter model.RecipeFilter) ([]*model.Recipe, error)
	getFn         func(ctx context.Context, userID, id int64) (*model.Recipe, error)
	createFn      func(ctx context.Context, userID int64, in recipe.Input) (*model.Recipe, error)
	updateFn      func(ctx context.Context, userID, id int64, in recipe.Input, partial bool) (*model.Recipe, error)
	deleteFn      func(ctx context.Context, userID, id int64) error
	uploadImageFn func(ctx context.Context, userID, id int64, filename string, r io.Reader) (*model.Recipe, error)
}

func (m *mockRecipeService) List(ctx context.Context, userID int64, filter model.RecipeFilter) ([]*model.Recipe, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, filter)
	}
	return nil, nil
}

func (m *mockRecipeService) Get(ctx context.Context, userID, id int64) (*model.Recipe, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, id)
	}
	return nil, model.NewRecipeNotFoundError("")
}

func (m *mockRecipeService) Create(ctx context.Context, userID int64, in recipe.Input) (*model.Recipe, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return nil, nil
}

func (m *mockRecipeService) Update(ctx context.Context, userID, id int64, in recipe.Input, partial bool) (*model.Recipe, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, id, in, partial)
	}
	return nil, model.NewRecipeNotFoundError("")
}

func (m *mockRecipeService) Delete(ctx context.Context, userID, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

func (m *mockRecipeService) UploadImage(ctx context.Context, userID, id int64, filename string, r io.Reader) (*model.Recipe, error) {
	if m.uploadImageFn != nil {
		return m.uploadImageFn(ctx, userID, id, filename, r)
	}
	return nil, model.NewRecipeNotFoundError("")
}

// staticURLs はImageURLBuilderのテスト実装。
type staticURLs string

func (s staticURLs) URL(relPath string) string {
	return string(s) + relPath
}

// mockAdminService はAdminServiceInterfaceのモック実装。
type mockAdminService struct {
	listUsersFn  func(ctx context.Context) ([]*model.User, error)
	getUserFn    func(ctx context.Context, userID int64) (*model.User, error)
	createUserFn func(ctx context.Context, email, password, name string) (*model.User, error)
	updateUserFn func(ctx context.Context, userID int64, in user.AdminInput) (*model.User, error)
}

func (m *mockAdminService) ListUsers(ctx context.Context) ([]*model.User, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx)
	}
	return nil, nil
}

func (m *mockAdminService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, userID)
	}
	return nil, model.NewUserNotFoundError()
}

func (m *mockAdminService) CreateUser(ctx context.Context, email, password, name string) (*model.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(ctx, email, password, name)
	}
	return &model.User{ID: 1, Email: email, Name: name, IsActive: true}, nil
}

func (m *mockAdminService) UpdateUser(ctx context.Context, userID int64, in user.AdminInput) (*model.User, error) {
	if m.updateUserFn != nil {
		return m.updateUserFn(ctx, userID, in)
	}
	return nil, model.NewUserNotFoundError()
}

// --- テストヘルパー ---

// withUserID はテスト用にコンテキストへユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID int64) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func newTestValidator() RequestValidator {
	return validation.New()
}

// decodeErrorBody はエラーレスポンスのボディを読み込む。
func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

func sampleRecipe(userID int64) *model.Recipe {
	return &model.Recipe{
		ID:          7,
		UserID:      userID,
		Title:       "Thai prawn curry",
		TimeMinutes: 30,
		Price:       model.MustParsePrice("5.50"),
		Link:        "https://example.com/curry",
		Tags:        []model.Tag{{ID: 1, UserID: userID, Name: "Thai"}},
		Ingredients: []model.Ingredient{{ID: 2, UserID: userID, Name: "Prawns"}},
	}
}
