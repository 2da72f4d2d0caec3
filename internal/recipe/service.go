package recipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/hitoshi/recipebox/internal/media"
	"github.com/hitoshi/recipebox/internal/metrics"
	"github.com/hitoshi/recipebox/internal/model"
	"github.com/hitoshi/recipebox/internal/repository"
)

// DefaultMaxImageSize はアップロード画像の既定の上限サイズ（10MiB）。
const DefaultMaxImageSize int64 = 10 << 20

// ImageStorage はレシピ画像の保存先インターフェース。
type ImageStorage interface {
	Save(relPath string, data []byte) error
	Delete(relPath string) error
}

// Input はレシピ作成・更新の入力。nilの項目は「指定なし」を表す。
type Input struct {
	Title         *string
	TimeMinutes   *int
	Price         *model.Price
	Link          *string
	TagIDs        *[]int64
	IngredientIDs *[]int64
}

// ServiceConfig はレシピサービスの設定。
type ServiceConfig struct {
	MaxImageSize int64
}

// Service はレシピCRUDと画像添付のサービス層。
// 全ての操作はリクエストユーザーの所有するレシピに限定される。
type Service struct {
	recipes      repository.RecipeRepository
	tags         repository.TagRepository
	ingredients  repository.IngredientRepository
	storage      ImageStorage
	metrics      metrics.MetricsCollector
	maxImageSize int64
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	recipes repository.RecipeRepository,
	tags repository.TagRepository,
	ingredients repository.IngredientRepository,
	storage ImageStorage,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if config.MaxImageSize <= 0 {
		config.MaxImageSize = DefaultMaxImageSize
	}
	return &Service{
		recipes:      recipes,
		tags:         tags,
		ingredients:  ingredients,
		storage:      storage,
		metrics:      collector,
		maxImageSize: config.MaxImageSize,
	}
}

// List はユーザーのレシピをID降順で返す。
func (s *Service) List(ctx context.Context, userID int64, filter model.RecipeFilter) ([]*model.Recipe, error) {
	recipes, err := s.recipes.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("レシピ一覧の取得に失敗しました: %w", err)
	}
	return recipes, nil
}

// Get はユーザーのレシピを1件取得する。他ユーザーのレシピは存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, userID, id int64) (*model.Recipe, error) {
	recipe, err := s.recipes.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("レシピの取得に失敗しました: %w", err)
	}
	if recipe == nil {
		return nil, model.NewRecipeNotFoundError(strconv.FormatInt(id, 10))
	}
	return recipe, nil
}

// Create はレシピを作成する。所有者は常にリクエストユーザーになる。
func (s *Service) Create(ctx context.Context, userID int64, in Input) (*model.Recipe, error) {
	recipe := &model.Recipe{UserID: userID}
	if err := s.apply(ctx, userID, recipe, in, false); err != nil {
		return nil, err
	}

	if err := s.recipes.Create(ctx, recipe); err != nil {
		return nil, fmt.Errorf("レシピの作成に失敗しました: %w", err)
	}
	s.metrics.RecordRecipeCreated()

	slog.Info("レシピを作成しました",
		slog.Int64("user_id", userID),
		slog.Int64("recipe_id", recipe.ID),
	)
	return recipe, nil
}

// Update はレシピを更新する。
// partialがtrueの場合は指定された項目のみを変更し、省略された関連はそのまま残す。
// partialがfalseの場合は全項目を置き換え、省略されたタグ・材料は空にし、リンクは空文字に戻す。
// 画像はどちらの場合も変更しない。
func (s *Service) Update(ctx context.Context, userID, id int64, in Input, partial bool) (*model.Recipe, error) {
	recipe, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := s.apply(ctx, userID, recipe, in, partial); err != nil {
		return nil, err
	}

	opts := repository.RecipeUpdateOptions{
		ReplaceTags:        !partial || in.TagIDs != nil,
		ReplaceIngredients: !partial || in.IngredientIDs != nil,
	}
	if err := s.recipes.Update(ctx, recipe, opts); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewRecipeNotFoundError(strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("レシピの更新に失敗しました: %w", err)
	}
	return recipe, nil
}

// Delete はユーザーのレシピを削除する。
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if err := s.recipes.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewRecipeNotFoundError(strconv.FormatInt(id, 10))
		}
		return fmt.Errorf("レシピの削除に失敗しました: %w", err)
	}
	slog.Info("レシピを削除しました", slog.Int64("user_id", userID), slog.Int64("recipe_id", id))
	return nil
}

// UploadImage はレシピに画像を添付する。
// 画像としてデコードできない場合はレシピを変更せずに入力検証エラーを返す。
// 以前の画像ファイルはここでは削除しない（孤立ファイルはクリーンアップジョブが回収する）。
func (s *Service) UploadImage(ctx context.Context, userID, id int64, filename string, r io.Reader) (*model.Recipe, error) {
	recipe, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if r == nil {
		return nil, model.NewValidationError("image", "No file was submitted.")
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("画像の読み込みに失敗しました: %w", err)
	}
	if len(data) == 0 {
		return nil, model.NewValidationError("image", "The submitted file is empty.")
	}
	if int64(len(data)) > s.maxImageSize {
		return nil, model.NewValidationError("image",
			fmt.Sprintf("Ensure the file size is no more than %d bytes.", s.maxImageSize))
	}

	format, err := media.Verify(data)
	if err != nil {
		return nil, model.NewInvalidImageError()
	}

	path := media.ImageFilePath(filename, format)
	if err := s.storage.Save(path, data); err != nil {
		return nil, fmt.Errorf("画像の保存に失敗しました: %w", err)
	}

	if err := s.recipes.UpdateImage(ctx, id, userID, path); err != nil {
		if delErr := s.storage.Delete(path); delErr != nil {
			slog.Warn("保存済み画像の削除に失敗しました",
				slog.String("path", path),
				slog.String("error", delErr.Error()),
			)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewRecipeNotFoundError(strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("レシピ画像の更新に失敗しました: %w", err)
	}

	recipe.Image = &path
	s.metrics.RecordImageUploaded(int64(len(data)))

	slog.Info("レシピ画像を保存しました",
		slog.Int64("user_id", userID),
		slog.Int64("recipe_id", id),
		slog.String("path", path),
		slog.Int("size", len(data)),
	)
	return recipe, nil
}

// apply は入力をレシピに反映する。partialがfalseの場合は必須項目を検証し、省略項目を既定値に戻す。
func (s *Service) apply(ctx context.Context, userID int64, recipe *model.Recipe, in Input, partial bool) error {
	verr := model.NewValidationError("", "")

	if !partial {
		if in.Title == nil {
			verr.WithField("title", model.MsgFieldRequired)
		}
		if in.TimeMinutes == nil {
			verr.WithField("time_minutes", model.MsgFieldRequired)
		}
		if in.Price == nil {
			verr.WithField("price", model.MsgFieldRequired)
		}
	}

	if in.Title != nil {
		title, err := cleanText("title", *in.Title, false)
		if err != nil {
			mergeFields(verr, err)
		} else {
			recipe.Title = title
		}
	}
	if in.TimeMinutes != nil {
		switch {
		case *in.TimeMinutes < 0:
			verr.WithField("time_minutes", "Ensure this value is greater than or equal to 0.")
		case *in.TimeMinutes > MaxTimeMinutes:
			verr.WithField("time_minutes", fmt.Sprintf("Ensure this value is less than or equal to %d.", MaxTimeMinutes))
		default:
			recipe.TimeMinutes = *in.TimeMinutes
		}
	}
	if in.Price != nil {
		recipe.Price = *in.Price
	}
	switch {
	case in.Link != nil:
		link, err := cleanText("link", *in.Link, true)
		if err != nil {
			mergeFields(verr, err)
		} else {
			recipe.Link = link
		}
	case !partial:
		recipe.Link = ""
	}

	if in.TagIDs != nil || !partial {
		ids, err := s.resolveOwned(ctx, "tags", userID, in.TagIDs, s.tags.OwnedIDs)
		if err != nil {
			if !mergeFields(verr, err) {
				return err
			}
		} else {
			recipe.Tags = make([]model.Tag, len(ids))
			for i, id := range ids {
				recipe.Tags[i] = model.Tag{ID: id, UserID: userID}
			}
		}
	}
	if in.IngredientIDs != nil || !partial {
		ids, err := s.resolveOwned(ctx, "ingredients", userID, in.IngredientIDs, s.ingredients.OwnedIDs)
		if err != nil {
			if !mergeFields(verr, err) {
				return err
			}
		} else {
			recipe.Ingredients = make([]model.Ingredient, len(ids))
			for i, id := range ids {
				recipe.Ingredients[i] = model.Ingredient{ID: id, UserID: userID}
			}
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// resolveOwned は重複を除いたIDを返す。ユーザーが所有しないIDが含まれる場合は入力検証エラー。
func (s *Service) resolveOwned(
	ctx context.Context,
	field string,
	userID int64,
	ids *[]int64,
	owned func(ctx context.Context, userID int64, ids []int64) ([]int64, error),
) ([]int64, error) {
	if ids == nil || len(*ids) == 0 {
		return nil, nil
	}

	seen := make(map[int64]bool, len(*ids))
	unique := make([]int64, 0, len(*ids))
	for _, id := range *ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	found, err := owned(ctx, userID, unique)
	if err != nil {
		return nil, fmt.Errorf("%sの所有確認に失敗しました: %w", field, err)
	}
	ownedSet := make(map[int64]bool, len(found))
	for _, id := range found {
		ownedSet[id] = true
	}
	for _, id := range unique {
		if !ownedSet[id] {
			return nil, model.NewValidationError(field, fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
		}
	}
	return unique, nil
}

// mergeFields はerrが入力検証エラーであればフィールドメッセージをdstに移してtrueを返す。
func mergeFields(dst *model.APIError, err error) bool {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		return false
	}
	for field, msgs := range apiErr.Fields {
		for _, msg := range msgs {
			dst.WithField(field, msg)
		}
	}
	return true
}
