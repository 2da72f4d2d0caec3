// Package recipe はタグ・材料・レシピの所有者スコープ付きCRUDと絞り込みを提供する。
package recipe

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/recipebox/internal/model"
	"github.com/hitoshi/recipebox/internal/repository"
)

// MaxNameLength はタグ名・材料名・タイトル・リンクの最大文字数。
const MaxNameLength = 255

// MaxTimeMinutes は調理時間の上限（INTEGER列の最大値）。
const MaxTimeMinutes = math.MaxInt32

// TagService はタグ一覧と作成のサービス層。
// タグは追記のみで、更新・削除は提供しない。
type TagService struct {
	repo repository.TagRepository
}

// NewTagService はTagServiceを生成する。
func NewTagService(repo repository.TagRepository) *TagService {
	return &TagService{repo: repo}
}

// List はユーザーのタグを名前の降順で返す。
func (s *TagService) List(ctx context.Context, userID int64, assignedOnly bool) ([]model.Tag, error) {
	tags, err := s.repo.ListByUser(ctx, userID, assignedOnly)
	if err != nil {
		return nil, fmt.Errorf("タグ一覧の取得に失敗しました: %w", err)
	}
	return tags, nil
}

// Create はユーザーのタグを作成する。
func (s *TagService) Create(ctx context.Context, userID int64, name string) (*model.Tag, error) {
	name, err := cleanText("name", name, false)
	if err != nil {
		return nil, err
	}

	tag := &model.Tag{UserID: userID, Name: name}
	if err := s.repo.Create(ctx, tag); err != nil {
		return nil, fmt.Errorf("タグの作成に失敗しました: %w", err)
	}

	slog.Debug("タグを作成しました", slog.Int64("user_id", userID), slog.Int64("tag_id", tag.ID))
	return tag, nil
}

// IngredientService は材料一覧と作成のサービス層。
type IngredientService struct {
	repo repository.IngredientRepository
}

// NewIngredientService はIngredientServiceを生成する。
func NewIngredientService(repo repository.IngredientRepository) *IngredientService {
	return &IngredientService{repo: repo}
}

// List はユーザーの材料を名前の降順で返す。
func (s *IngredientService) List(ctx context.Context, userID int64, assignedOnly bool) ([]model.Ingredient, error) {
	ingredients, err := s.repo.ListByUser(ctx, userID, assignedOnly)
	if err != nil {
		return nil, fmt.Errorf("材料一覧の取得に失敗しました: %w", err)
	}
	return ingredients, nil
}

// Create はユーザーの材料を作成する。
func (s *IngredientService) Create(ctx context.Context, userID int64, name string) (*model.Ingredient, error) {
	name, err := cleanText("name", name, false)
	if err != nil {
		return nil, err
	}

	ingredient := &model.Ingredient{UserID: userID, Name: name}
	if err := s.repo.Create(ctx, ingredient); err != nil {
		return nil, fmt.Errorf("材料の作成に失敗しました: %w", err)
	}

	slog.Debug("材料を作成しました", slog.Int64("user_id", userID), slog.Int64("ingredient_id", ingredient.ID))
	return ingredient, nil
}

// cleanText は前後の空白を取り除き、空文字・NUL文字・長さを検証する。
// それ以外の内容は入力のまま保存する（JSONでのみ返すためHTMLとして解釈されることはない）。
func cleanText(field, raw string, allowBlank bool) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" && !allowBlank {
		return "", model.NewValidationError(field, model.MsgFieldBlank)
	}
	if strings.ContainsRune(text, 0) {
		return "", model.NewValidationError(field, model.MsgNullCharacters)
	}
	if utf8.RuneCountInString(text) > MaxNameLength {
		return "", model.NewValidationError(field,
			fmt.Sprintf("Ensure this field has no more than %d characters.", MaxNameLength))
	}
	return text, nil
}
