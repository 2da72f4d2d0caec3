package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/recipebox/internal/model"
	"github.com/lib/pq"
)

// queryer は*sql.DBと*sql.Txに共通するクエリ操作。
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const recipeColumns = `r.id, r.user_id, r.title, r.time_minutes, r.price, r.link, r.image,
		       r.created_at, r.updated_at`

// PostgresRecipeRepo はPostgreSQLを使用したレシピリポジトリ。
type PostgresRecipeRepo struct {
	db *sql.DB
}

// NewPostgresRecipeRepo はPostgresRecipeRepoを生成する。
func NewPostgresRecipeRepo(db *sql.DB) *PostgresRecipeRepo {
	return &PostgresRecipeRepo{db: db}
}

// List はユーザーのレシピをID降順で返す。
// 関連の絞り込みはEXISTSで評価するため、複数のタグに一致しても重複しない。
func (r *PostgresRecipeRepo) List(ctx context.Context, userID int64, filter model.RecipeFilter) ([]*model.Recipe, error) {
	query := `SELECT ` + recipeColumns + ` FROM recipes r WHERE r.user_id = $1`
	args := []any{userID}
	argIndex := 2

	if len(filter.TagIDs) > 0 {
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM recipe_tags rt WHERE rt.recipe_id = r.id AND rt.tag_id = ANY($%d))`, argIndex)
		args = append(args, pq.Array(filter.TagIDs))
		argIndex++
	}
	if len(filter.IngredientIDs) > 0 {
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM recipe_ingredients ri WHERE ri.recipe_id = r.id AND ri.ingredient_id = ANY($%d))`, argIndex)
		args = append(args, pq.Array(filter.IngredientIDs))
	}
	query += ` ORDER BY r.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []*model.Recipe
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe row: %w", err)
		}
		recipes = append(recipes, recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipes: %w", err)
	}

	if err := loadAssociations(ctx, r.db, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// FindByIDAndUser はユーザーが所有するレシピを取得する。見つからない場合はnilを返す。
func (r *PostgresRecipeRepo) FindByIDAndUser(ctx context.Context, id, userID int64) (*model.Recipe, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recipeColumns+` FROM recipes r WHERE r.id = $1 AND r.user_id = $2`,
		id, userID,
	)
	recipe, err := scanRecipe(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recipe: %w", err)
	}

	if err := loadAssociations(ctx, r.db, []*model.Recipe{recipe}); err != nil {
		return nil, err
	}
	return recipe, nil
}

// Create はレシピと関連を同一トランザクションで作成する。
// recipe.Tags / recipe.Ingredients はIDのみ参照し、作成後に名前付きで読み直す。
func (r *PostgresRecipeRepo) Create(ctx context.Context, recipe *model.Recipe) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO recipes (user_id, title, time_minutes, price, link, image)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		recipe.UserID, recipe.Title, recipe.TimeMinutes, recipe.Price, recipe.Link, nullStringPtr(recipe.Image),
	).Scan(&recipe.ID, &recipe.CreatedAt, &recipe.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert recipe: %w", err)
	}

	if err := insertLinks(ctx, tx, "recipe_tags", "tag_id", recipe.ID, recipe.TagIDs()); err != nil {
		return err
	}
	if err := insertLinks(ctx, tx, "recipe_ingredients", "ingredient_id", recipe.ID, recipe.IngredientIDs()); err != nil {
		return err
	}
	if err := loadAssociations(ctx, tx, []*model.Recipe{recipe}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update はレシピのスカラー項目を更新し、optsに応じて関連を置き換える。
func (r *PostgresRecipeRepo) Update(ctx context.Context, recipe *model.Recipe, opts RecipeUpdateOptions) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var image sql.NullString
	err = tx.QueryRowContext(ctx,
		`UPDATE recipes
		 SET title = $1, time_minutes = $2, price = $3, link = $4, updated_at = now()
		 WHERE id = $5 AND user_id = $6
		 RETURNING image, created_at, updated_at`,
		recipe.Title, recipe.TimeMinutes, recipe.Price, recipe.Link, recipe.ID, recipe.UserID,
	).Scan(&image, &recipe.CreatedAt, &recipe.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update recipe: %w", err)
	}
	recipe.Image = stringPtr(image)

	if opts.ReplaceTags {
		if err := replaceLinks(ctx, tx, "recipe_tags", "tag_id", recipe.ID, recipe.TagIDs()); err != nil {
			return err
		}
	}
	if opts.ReplaceIngredients {
		if err := replaceLinks(ctx, tx, "recipe_ingredients", "ingredient_id", recipe.ID, recipe.IngredientIDs()); err != nil {
			return err
		}
	}
	if err := loadAssociations(ctx, tx, []*model.Recipe{recipe}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete はユーザーが所有するレシピを削除する。関連行はCASCADE削除される。
func (r *PostgresRecipeRepo) Delete(ctx context.Context, id, userID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM recipes WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateImage はレシピの画像パスを更新する。
func (r *PostgresRecipeRepo) UpdateImage(ctx context.Context, id, userID int64, image string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE recipes SET image = $1, updated_at = now() WHERE id = $2 AND user_id = $3`,
		image, id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update recipe image: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListImagePaths は参照されている全ての画像パスを返す。
func (r *PostgresRecipeRepo) ListImagePaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT image FROM recipes WHERE image IS NOT NULL AND image <> ''`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list image paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan image path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate image paths: %w", err)
	}
	return paths, nil
}

func scanRecipe(row rowScanner) (*model.Recipe, error) {
	recipe := &model.Recipe{}
	var image sql.NullString
	if err := row.Scan(
		&recipe.ID, &recipe.UserID, &recipe.Title, &recipe.TimeMinutes, &recipe.Price,
		&recipe.Link, &image, &recipe.CreatedAt, &recipe.UpdatedAt,
	); err != nil {
		return nil, err
	}
	recipe.Image = stringPtr(image)
	recipe.Tags = []model.Tag{}
	recipe.Ingredients = []model.Ingredient{}
	return recipe, nil
}

// insertLinks は中間テーブルに関連行を追加する。重複IDは1行にまとめる。
func insertLinks(ctx context.Context, q queryer, table, column string, recipeID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (recipe_id, %s)
		 SELECT $1, unnest($2::bigint[])
		 ON CONFLICT DO NOTHING`, table, column),
		recipeID, pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", table, err)
	}
	return nil
}

// replaceLinks はレシピの関連行を全て削除してからidsで作り直す。
func replaceLinks(ctx context.Context, q queryer, table, column string, recipeID int64, ids []int64) error {
	if _, err := q.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE recipe_id = $1`, table),
		recipeID,
	); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	return insertLinks(ctx, q, table, column, recipeID, ids)
}

// loadAssociations はrecipesのタグと材料をまとめて読み込む。
func loadAssociations(ctx context.Context, q queryer, recipes []*model.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	byID := make(map[int64]*model.Recipe, len(recipes))
	ids := make([]int64, 0, len(recipes))
	for _, recipe := range recipes {
		recipe.Tags = []model.Tag{}
		recipe.Ingredients = []model.Ingredient{}
		byID[recipe.ID] = recipe
		ids = append(ids, recipe.ID)
	}

	tagRows, err := q.QueryContext(ctx,
		`SELECT rt.recipe_id, t.id, t.user_id, t.name, t.created_at
		 FROM recipe_tags rt
		 JOIN tags t ON t.id = rt.tag_id
		 WHERE rt.recipe_id = ANY($1)
		 ORDER BY t.id`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to load recipe tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var recipeID int64
		var tag model.Tag
		if err := tagRows.Scan(&recipeID, &tag.ID, &tag.UserID, &tag.Name, &tag.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan recipe tag: %w", err)
		}
		byID[recipeID].Tags = append(byID[recipeID].Tags, tag)
	}
	if err := tagRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate recipe tags: %w", err)
	}

	ingRows, err := q.QueryContext(ctx,
		`SELECT ri.recipe_id, i.id, i.user_id, i.name, i.created_at
		 FROM recipe_ingredients ri
		 JOIN ingredients i ON i.id = ri.ingredient_id
		 WHERE ri.recipe_id = ANY($1)
		 ORDER BY i.id`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to load recipe ingredients: %w", err)
	}
	defer ingRows.Close()
	for ingRows.Next() {
		var recipeID int64
		var ing model.Ingredient
		if err := ingRows.Scan(&recipeID, &ing.ID, &ing.UserID, &ing.Name, &ing.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan recipe ingredient: %w", err)
		}
		byID[recipeID].Ingredients = append(byID[recipeID].Ingredients, ing)
	}
	if err := ingRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate recipe ingredients: %w", err)
	}

	return nil
}

// compile-time interface check
var _ RecipeRepository = (*PostgresRecipeRepo)(nil)
