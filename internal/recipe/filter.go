package recipe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/recipebox/internal/model"
)

// ParseIDList はクエリ文字列 "1,2,3" をIDのスライスに変換する。
// 空要素は無視し、整数でない要素があれば param を対象とする入力検証エラーを返す。
func ParseIDList(param, raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, model.NewValidationError(param, fmt.Sprintf("%q is not a valid integer.", part))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseFilter はレシピ一覧のクエリパラメータ tags / ingredients を解析する。
func ParseFilter(tags, ingredients string) (model.RecipeFilter, error) {
	tagIDs, err := ParseIDList("tags", tags)
	if err != nil {
		return model.RecipeFilter{}, err
	}
	ingredientIDs, err := ParseIDList("ingredients", ingredients)
	if err != nil {
		return model.RecipeFilter{}, err
	}
	return model.RecipeFilter{TagIDs: tagIDs, IngredientIDs: ingredientIDs}, nil
}

// ParseAssignedOnly はクエリパラメータ assigned_only を解析する。
// 未指定は false、0以外の整数は true。整数でない値は入力検証エラー。
func ParseAssignedOnly(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return false, model.NewValidationError("assigned_only", "A valid integer is required.")
	}
	return n != 0, nil
}
