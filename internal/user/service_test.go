package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/recipebox/internal/model"
	"github.com/hitoshi/recipebox/internal/repository"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id int64) (*model.User, error)
	updateFn   func(ctx context.Context, user *model.User) error
	listFn     func(ctx context.Context) ([]*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	return nil
}
func (m *mockUserRepo) Update(ctx context.Context, user *model.User) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, user)
	}
	return nil
}
func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return nil
}
func (m *mockUserRepo) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

type mockHasher struct{}

func (mockHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func strPtr(s string) *string { return &s }

func existingUser() *model.User {
	return &model.User{ID: 1, Email: "test@example.com", Name: "Test Name", PasswordHash: "hashed:old", IsActive: true}
}

// --- テスト ---

func TestGetProfile_Success(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
			return existingUser(), nil
		},
	}
	svc := NewService(repo, mockHasher{})

	user, err := svc.GetProfile(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "test@example.com" || user.Name != "Test Name" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestGetProfile_UserNotFound(t *testing.T) {
	svc := NewService(&mockUserRepo{}, mockHasher{})

	_, err := svc.GetProfile(context.Background(), 999)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeUserNotFound)
	}
}

func TestUpdateProfile_PartialKeepsOmittedFields(t *testing.T) {
	var saved *model.User
	repo := &mockUserRepo{
		findByIDFn: func(context.Context, int64) (*model.User, error) { return existingUser(), nil },
		updateFn: func(_ context.Context, user *model.User) error {
			saved = user
			return nil
		},
	}
	svc := NewService(repo, mockHasher{})

	user, err := svc.UpdateProfile(context.Background(), 1, ProfileInput{
		Name:     strPtr("updated name"),
		Password: strPtr("newpassword123"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Name != "updated name" {
		t.Errorf("Name = %q, want %q", user.Name, "updated name")
	}
	if saved.Email != "test@example.com" {
		t.Errorf("Email changed unexpectedly: %q", saved.Email)
	}
	if saved.PasswordHash != "hashed:newpassword123" {
		t.Errorf("PasswordHash = %q, want re-hashed password", saved.PasswordHash)
	}
}

func TestUpdateProfile_NormalizesEmail(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(context.Context, int64) (*model.User, error) { return existingUser(), nil },
	}
	svc := NewService(repo, mockHasher{})

	user, err := svc.UpdateProfile(context.Background(), 1, ProfileInput{Email: strPtr("New@EXAMPLE.com")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "New@example.com" {
		t.Errorf("Email = %q, want %q", user.Email, "New@example.com")
	}
}

func TestUpdateProfile_DuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(context.Context, int64) (*model.User, error) { return existingUser(), nil },
		updateFn: func(context.Context, *model.User) error {
			return repository.ErrDuplicateEmail
		},
	}
	svc := NewService(repo, mockHasher{})

	_, err := svc.UpdateProfile(context.Background(), 1, ProfileInput{Email: strPtr("taken@example.com")})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeValidation {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeValidation)
	}
}

func TestUpdateProfile_RepoError(t *testing.T) {
	repoErr := errors.New("db error")
	repo := &mockUserRepo{
		findByIDFn: func(context.Context, int64) (*model.User, error) { return existingUser(), nil },
		updateFn:   func(context.Context, *model.User) error { return repoErr },
	}
	svc := NewService(repo, mockHasher{})

	_, err := svc.UpdateProfile(context.Background(), 1, ProfileInput{Name: strPtr("x")})
	if !errors.Is(err, repoErr) {
		t.Errorf("expected wrapped repo error, got %v", err)
	}
}
