package recipe

import (
	"context"
	"time"

	"github.com/hitoshi/recipebox/internal/model"
	"github.com/hitoshi/recipebox/internal/repository"
)

// --- モック定義 ---

type mockTagRepo struct {
	listByUserFn func(ctx context.Context, userID int64, assignedOnly bool) ([]model.Tag, error)
	createFn     func(ctx context.Context, tag *model.Tag) error
	ownedIDsFn   func(ctx context.Context, userID int64, ids []int64) ([]int64, error)
}

func (m *mockTagRepo) ListByUser(ctx context.Context, userID int64, assignedOnly bool) ([]model.Tag, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, assignedOnly)
	}
	return nil, nil
}

func (m *mockTagRepo) Create(ctx context.Context, tag *model.Tag) error {
	if m.createFn != nil {
		return m.createFn(ctx, tag)
	}
	tag.ID = 1
	return nil
}

func (m *mockTagRepo) OwnedIDs(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	if m.ownedIDsFn != nil {
		return m.ownedIDsFn(ctx, userID, ids)
	}
	return ids, nil
}

type mockIngredientRepo struct {
	listByUserFn func(ctx context.Context, userID int64, assignedOnly bool) ([]model.Ingredient, error)
	createFn     func(ctx context.Context, ingredient *model.Ingredient) error
	ownedIDsFn   func(ctx context.Context, userID int64, ids []int64) ([]int64, error)
}

func (m *mockIngredientRepo) ListByUser(ctx context.Context, userID int64, assignedOnly bool) ([]model.Ingredient, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, assignedOnly)
	}
	return nil, nil
}

func (m *mockIngredientRepo) Create(ctx context.Context, ingredient *model.Ingredient) error {
	if m.createFn != nil {
		return m.createFn(ctx, ingredient)
	}
	ingredient.ID = 1
	return nil
}

func (m *mockIngredientRepo) OwnedIDs(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	if m.ownedIDsFn != nil {
		return m.ownedIDsFn(ctx, userID, ids)
	}
	return ids, nil
}

type mockRecipeRepo struct {
	listFn           func(ctx context.Context, userID int64, filter model.RecipeFilter) ([]*model.Recipe, error)
	findByIDAndUser  func(ctx context.Context, id, userID int64) (*model.Recipe, error)
	createFn         func(ctx context.Context, recipe *model.Recipe) error
	updateFn         func(ctx context.Context, recipe *model.Recipe, opts repository.RecipeUpdateOptions) error
	deleteFn         func(ctx context.Context, id, userID int64) error
	updateImageFn    func(ctx context.Context, id, userID int64, image string) error
	listImagePathsFn func(ctx context.Context) ([]string, error)
}

func (m *mockRecipeRepo) List(ctx context.Context, userID int64, filter model.RecipeFilter) ([]*model.Recipe, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, filter)
	}
	return nil, nil
}

func (m *mockRecipeRepo) FindByIDAndUser(ctx context.Context, id, userID int64) (*model.Recipe, error) {
	if m.findByIDAndUser != nil {
		return m.findByIDAndUser(ctx, id, userID)
	}
	return nil, nil
}

func (m *mockRecipeRepo) Create(ctx context.Context, recipe *model.Recipe) error {
	if m.createFn != nil {
		return m.createFn(ctx, recipe)
	}
	recipe.ID = 1
	recipe.CreatedAt = time.Now()
	return nil
}

func (m *mockRecipeRepo) Update(ctx context.Context, recipe *model.Recipe, opts repository.RecipeUpdateOptions) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, recipe, opts)
	}
	return nil
}

func (m *mockRecipeRepo) Delete(ctx context.Context, id, userID int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id, userID)
	}
	return nil
}

func (m *mockRecipeRepo) UpdateImage(ctx context.Context, id, userID int64, image string) error {
	if m.updateImageFn != nil {
		return m.updateImageFn(ctx, id, userID, image)
	}
	return nil
}

func (m *mockRecipeRepo) ListImagePaths(ctx context.Context) ([]string, error) {
	if m.listImagePathsFn != nil {
		return m.listImagePathsFn(ctx)
	}
	return nil, nil
}

type mockStorage struct {
	saved   map[string][]byte
	deleted []string
	saveErr error
}

func newMockStorage() *mockStorage {
	return &mockStorage{saved: make(map[string][]byte)}
}

func (m *mockStorage) Save(relPath string, data []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[relPath] = data
	return nil
}

func (m *mockStorage) Delete(relPath string) error {
	m.deleted = append(m.deleted, relPath)
	delete(m.saved, relPath)
	return nil
}

type mockCollector struct {
	recipesCreated int
	imagesUploaded int
	uploadedBytes  int64
}

func (m *mockCollector) RecordHTTPRequest(int, time.Duration) {}
func (m *mockCollector) RecordAuthFailure(string)             {}
func (m *mockCollector) RecordRecipeCreated()                 { m.recipesCreated++ }
func (m *mockCollector) RecordImageUploaded(size int64) {
	m.imagesUploaded++
	m.uploadedBytes += size
}
func (m *mockCollector) RecordOrphanImagesRemoved(int) {}
