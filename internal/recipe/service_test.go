package recipe

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"reflect"
	"strings"
	"testing"

	"github.com/hitoshi/recipebox/internal/model"
	"github.com/hitoshi/recipebox/internal/repository"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func idsPtr(ids ...int64) *[]int64 {
	if ids == nil {
		ids = []int64{}
	}
	return &ids
}
func pricePtr(s string) *model.Price {
	p := model.MustParsePrice(s)
	return &p
}

type serviceFixture struct {
	recipes     *mockRecipeRepo
	tags        *mockTagRepo
	ingredients *mockIngredientRepo
	storage     *mockStorage
	collector   *mockCollector
}

func newFixture() *serviceFixture {
	return &serviceFixture{
		recipes:     &mockRecipeRepo{},
		tags:        &mockTagRepo{},
		ingredients: &mockIngredientRepo{},
		storage:     newMockStorage(),
		collector:   &mockCollector{},
	}
}

func (f *serviceFixture) service(maxImageSize int64) *Service {
	return NewService(f.recipes, f.tags, f.ingredients, f.storage,
		f.collector, ServiceConfig{MaxImageSize: maxImageSize})
}

func existingRecipe(userID int64) *model.Recipe {
	image := "uploads/recipe/old.jpg"
	return &model.Recipe{
		ID:          42,
		UserID:      userID,
		Title:       "Old",
		TimeMinutes: 30,
		Price:       model.MustParsePrice("9.99"),
		Link:        "https://example.com",
		Image:       &image,
		Tags:        []model.Tag{{ID: 1, UserID: userID, Name: "A"}},
		Ingredients: []model.Ingredient{{ID: 2, UserID: userID, Name: "B"}},
	}
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRecipeNotFound {
		t.Fatalf("expected RECIPE_NOT_FOUND, got %v", err)
	}
}

// --- List / Get ---

func TestService_List(t *testing.T) {
	f := newFixture()
	var gotFilter model.RecipeFilter
	f.recipes.listFn = func(ctx context.Context, userID int64, filter model.RecipeFilter) ([]*model.Recipe, error) {
		if userID != 5 {
			t.Errorf("userID = %d, want 5", userID)
		}
		gotFilter = filter
		return []*model.Recipe{existingRecipe(5)}, nil
	}

	filter := model.RecipeFilter{TagIDs: []int64{1, 2}}
	recipes, err := f.service(0).List(context.Background(), 5, filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recipes) != 1 {
		t.Errorf("len = %d, want 1", len(recipes))
	}
	if !reflect.DeepEqual(gotFilter, filter) {
		t.Errorf("filter = %+v, want %+v", gotFilter, filter)
	}
}

func TestService_Get_NotOwned(t *testing.T) {
	f := newFixture()
	f.recipes.findByIDAndUser = func(ctx context.Context, id, userID int64) (*model.Recipe, error) {
		return nil, nil
	}

	_, err := f.service(0).Get(context.Background(), 1, 42)
	assertNotFound(t, err)
}

// --- Create ---

func TestService_Create(t *testing.T) {
	f := newFixture()
	var created *model.Recipe
	f.recipes.createFn = func(ctx context.Context, recipe *model.Recipe) error {
		recipe.ID = 100
		created = recipe
		return nil
	}

	in := Input{
		Title:         strPtr(" Thai <red> curry "),
		TimeMinutes:   intPtr(10),
		Price:         pricePtr("5.00"),
		TagIDs:        idsPtr(1, 2, 1),
		IngredientIDs: idsPtr(3),
	}
	recipe, err := f.service(0).Create(context.Background(), 9, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created == nil || recipe.ID != 100 {
		t.Fatal("expected recipe to be persisted")
	}
	if recipe.UserID != 9 {
		t.Errorf("UserID = %d, want 9", recipe.UserID)
	}
	if recipe.Title != "Thai <red> curry" {
		t.Errorf("Title = %q, want trimmed title kept as given", recipe.Title)
	}
	if recipe.Link != "" {
		t.Errorf("Link = %q, want empty default", recipe.Link)
	}
	if got := recipe.TagIDs(); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Errorf("TagIDs = %v, want de-duplicated [1 2]", got)
	}
	if got := recipe.IngredientIDs(); !reflect.DeepEqual(got, []int64{3}) {
		t.Errorf("IngredientIDs = %v, want [3]", got)
	}
	if f.collector.recipesCreated != 1 {
		t.Errorf("recipesCreated = %d, want 1", f.collector.recipesCreated)
	}
}

func TestService_Create_RequiredFields(t *testing.T) {
	f := newFixture()
	f.recipes.createFn = func(ctx context.Context, recipe *model.Recipe) error {
		t.Fatal("repo must not be called")
		return nil
	}

	_, err := f.service(0).Create(context.Background(), 1, Input{})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	for _, field := range []string{"title", "time_minutes", "price"} {
		if got := apiErr.Fields[field]; len(got) != 1 || got[0] != model.MsgFieldRequired {
			t.Errorf("Fields[%q] = %v, want required message", field, got)
		}
	}
}

func TestService_Create_NegativeMinutes(t *testing.T) {
	f := newFixture()
	_, err := f.service(0).Create(context.Background(), 1, Input{
		Title: strPtr("T"), TimeMinutes: intPtr(-1), Price: pricePtr("1.00"),
	})
	assertValidationField(t, err, "time_minutes")
}

func TestService_Create_MinutesAboveIntegerRange(t *testing.T) {
	f := newFixture()
	_, err := f.service(0).Create(context.Background(), 1, Input{
		Title: strPtr("T"), TimeMinutes: intPtr(MaxTimeMinutes + 1), Price: pricePtr("1.00"),
	})
	assertValidationField(t, err, "time_minutes")
}

func TestService_Create_LinkKeptAsGiven(t *testing.T) {
	f := newFixture()
	link := "https://example.com/r?a=1&b=<2>"
	recipe, err := f.service(0).Create(context.Background(), 1, Input{
		Title: strPtr("T"), TimeMinutes: intPtr(1), Price: pricePtr("1.00"), Link: strPtr(" " + link + " "),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recipe.Link != link {
		t.Errorf("Link = %q, want %q", recipe.Link, link)
	}
}

func TestService_Create_NullCharacterInTitle(t *testing.T) {
	f := newFixture()
	_, err := f.service(0).Create(context.Background(), 1, Input{
		Title: strPtr("T\x00"), TimeMinutes: intPtr(1), Price: pricePtr("1.00"),
	})
	assertValidationField(t, err, "title")
}

func TestService_Create_ForeignTag(t *testing.T) {
	f := newFixture()
	f.tags.ownedIDsFn = func(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
		// タグ2は他ユーザーの所有
		return []int64{1}, nil
	}

	_, err := f.service(0).Create(context.Background(), 1, Input{
		Title: strPtr("T"), TimeMinutes: intPtr(1), Price: pricePtr("1.00"),
		TagIDs: idsPtr(1, 2),
	})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	want := []string{`Invalid pk "2" - object does not exist.`}
	if !reflect.DeepEqual(apiErr.Fields["tags"], want) {
		t.Errorf("Fields[tags] = %v, want %v", apiErr.Fields["tags"], want)
	}
}

func TestService_Create_OwnershipLookupError(t *testing.T) {
	f := newFixture()
	f.ingredients.ownedIDsFn = func(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
		return nil, errors.New("db down")
	}

	_, err := f.service(0).Create(context.Background(), 1, Input{
		Title: strPtr("T"), TimeMinutes: intPtr(1), Price: pricePtr("1.00"),
		IngredientIDs: idsPtr(1),
	})
	var apiErr *model.APIError
	if err == nil || errors.As(err, &apiErr) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}

// --- Update ---

func TestService_Update_PartialKeepsAssociations(t *testing.T) {
	f := newFixture()
	f.recipes.findByIDAndUser = func(ctx context.Context, id, userID int64) (*model.Recipe, error) {
		return existingRecipe(userID), nil
	}
	var gotOpts repository.RecipeUpdateOptions
	f.recipes.updateFn = func(ctx context.Context, recipe *model.Recipe, opts repository.RecipeUpdateOptions) error {
		gotOpts = opts
		return nil
	}

	recipe, err := f.service(0).Update(context.Background(), 1, 42, Input{Title: strPtr("X")}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recipe.Title != "X" {
		t.Errorf("Title = %q, want X", recipe.Title)
	}
	if recipe.TimeMinutes != 30 || recipe.Link != "https://example.com" {
		t.Errorf("omitted fields changed: %+v", recipe)
	}
	if gotOpts.ReplaceTags || gotOpts.ReplaceIngredients {
		t.Errorf("partial update must not replace associations: %+v", gotOpts)
	}
	if got := recipe.TagIDs(); !reflect.DeepEqual(got, []int64{1}) {
		t.Errorf("TagIDs = %v, want [1]", got)
	}
}

func TestService_Update_PartialReplacesGivenAssociation(t *testing.T) {
	f := newFixture()
	f.recipes.findByIDAndUser = func(ctx context.Context, id, userID int64) (*model.Recipe, error) {
		return existingRecipe(userID), nil
	}
	var gotOpts repository.RecipeUpdateOptions
	f.recipes.updateFn = func(ctx context.Context, recipe *model.Recipe, opts repository.RecipeUpdateOptions) error {
		gotOpts = opts
		return nil
	}

	recipe, err := f.service(0).Update(context.Background(), 1, 42, Input{TagIDs: idsPtr(7)}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotOpts.ReplaceTags || gotOpts.ReplaceIngredients {
		t.Errorf("opts = %+v, want only tags replaced", gotOpts)
	}
	if got := recipe.TagIDs(); !reflect.DeepEqual(got, []int64{7}) {
		t.Errorf("TagIDs = %v, want [7]", got)
	}
}

func TestService_Update_FullClearsOmitted(t *testing.T) {
	f := newFixture()
	f.recipes.findByIDAndUser = func(ctx context.Context, id, userID int64) (*model.Recipe, error) {
		return existingRecipe(userID), nil
	}
	var gotOpts repository.RecipeUpdateOptions
	f.recipes.updateFn = func(ctx context.Context, recipe *model.Recipe, opts repository.RecipeUpdateOptions) error {
		gotOpts = opts
		return nil
	}

	recipe, err := f.service(0).Update(context.Background(), 1, 42, Input{
		Title: strPtr("X"), TimeMinutes: intPtr(5), Price: pricePtr("1.00"),
	}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotOpts.ReplaceTags || !gotOpts.ReplaceIngredients {
		t.Errorf("full update must replace associations: %+v", gotOpts)
	}
	if len(recipe.Tags) != 0 || len(recipe.Ingredients) != 0 {
		t.Errorf("expected associations cleared, got tags=%v ingredients=%v", recipe.Tags, recipe.Ingredients)
	}
	if recipe.Link != "" {
		t.Errorf("Link = %q, want reset to empty", recipe.Link)
	}
	if recipe.Image == nil || *recipe.Image != "uploads/recipe/old.jpg" {
		t.Errorf("image must not be touched by update: %v", recipe.Image)
	}
	if recipe.Price != model.MustParsePrice("1.00") {
		t.Errorf("Price = %s, want 1.00", recipe.Price)
	}
}

func TestService_Update_FullRequiresFields(t *testing.T) {
	f := newFixture()
	f.recipes.findByIDAndUser = func(ctx context.Context, id, userID int64) (*model.Recipe, error) {
		return existingRecipe(userID), nil
	}

	_, err := f.service(0).Update(context.Background(), 1, 42, Input{Title: strPtr("X")}, false)
	assertValidationField(t, err, "price")
}

func TestService_Update_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.service(0).Update(context.Background(), 1, 42, Input{Title: strPtr("X")}, true)
	assertNotFound(t, err)
}

// --- Delete ---

func TestService_Delete(t *testing.T) {
	f := newFixture()
	var gotID, gotUser int64
	f.recipes.deleteFn = func(ctx context.Context, id, userID int64) error {
		gotID, gotUser = id, userID
		return nil
	}

	if err := f.service(0).Delete(context.Background(), 3, 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != 42 || gotUser != 3 {
		t.Errorf("Delete called with id=%d user=%d", gotID, gotUser)
	}
}

func TestService_Delete_NotOwned(t *testing.T) {
	f := newFixture()
	f.recipes.deleteFn = func(ctx context.Context, id, userID int64) error {
		return repository.ErrNotFound
	}

	assertNotFound(t, f.service(0).Delete(context.Background(), 3, 42))
}

// --- UploadImage ---

func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 10, 10)), nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestService_UploadImage(t *testing.T) {
	f := newFixture()
	f.recipes.findByIDAndUser = func(ctx context.Context, id, userID int64) (*model.Recipe, error) {
		return existingRecipe(userID), nil
	}
	var storedPath string
	f.recipes.updateImageFn = func(ctx context.Context, id, userID int64, image string) error {
		storedPath = image
		return nil
	}

	data := testJPEG(t)
	recipe, err := f.service(0).UploadImage(context.Background(), 1, 42, "cake.jpg", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if recipe.Image == nil || *recipe.Image != storedPath {
		t.Fatalf("Image = %v, want %q", recipe.Image, storedPath)
	}
	if !strings.HasPrefix(storedPath, "uploads/recipe/") || !strings.HasSuffix(storedPath, ".jpg") {
		t.Errorf("unexpected path %q", storedPath)
	}
	if !bytes.Equal(f.storage.saved[storedPath], data) {
		t.Error("expected image data to be stored")
	}
	if len(f.storage.deleted) != 0 {
		t.Errorf("previous image must not be deleted, deleted=%v", f.storage.deleted)
	}
	if f.collector.imagesUploaded != 1 || f.collector.uploadedBytes != int64(len(data)) {
		t.Errorf("unexpected metrics: %+v", f.collector)
	}
}

func TestService_UploadImage_NotImage(t *testing.T) {
	f := newFixture()
	f.recipes.findByIDAndUser = func(ctx context.Context, id, userID int64) (*model.Recipe, error) {
		return existingRecipe(userID), nil
	}
	f.recipes.updateImageFn = func(ctx context.Context, id, userID int64, image string) error {
		t.Fatal("recipe must be left unchanged")
		return nil
	}

	_, err := f.service(0).UploadImage(context.Background(), 1, 42, "x.jpg", strings.NewReader("notimage"))
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidImage {
		t.Fatalf("expected INVALID_IMAGE, got %v", err)
	}
	if len(f.storage.saved) != 0 {
		t.Error("nothing should be stored")
	}
}

func TestService_UploadImage_TooLarge(t *testing.T) {
	f := newFixture()
	f.recipes.findByIDAndUser = func(ctx context.Context, id, userID int64) (*model.Recipe, error) {
		return existingRecipe(userID), nil
	}

	_, err := f.service(16).UploadImage(context.Background(), 1, 42, "x.jpg", bytes.NewReader(testJPEG(t)))
	assertValidationField(t, err, "image")
}

func TestService_UploadImage_NotOwned(t *testing.T) {
	f := newFixture()
	_, err := f.service(0).UploadImage(context.Background(), 1, 42, "x.jpg", bytes.NewReader(testJPEG(t)))
	assertNotFound(t, err)
}

func TestService_UploadImage_DBFailureRemovesFile(t *testing.T) {
	f := newFixture()
	f.recipes.findByIDAndUser = func(ctx context.Context, id, userID int64) (*model.Recipe, error) {
		return existingRecipe(userID), nil
	}
	f.recipes.updateImageFn = func(ctx context.Context, id, userID int64, image string) error {
		return errors.New("db down")
	}

	_, err := f.service(0).UploadImage(context.Background(), 1, 42, "x.jpg", bytes.NewReader(testJPEG(t)))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.storage.deleted) != 1 || len(f.storage.saved) != 0 {
		t.Errorf("expected stored file to be removed, saved=%d deleted=%v", len(f.storage.saved), f.storage.deleted)
	}
}
