package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/recipebox/internal/model"
	"github.com/lib/pq"
)

// attributeTable はタグと材料で共通のテーブル操作をまとめる。
// 両者は所有ユーザーと名前だけを持ち、レシピとは中間テーブルで関連付けられる。
type attributeTable struct {
	db         *sql.DB
	table      string // tags / ingredients
	joinTable  string // recipe_tags / recipe_ingredients
	joinColumn string // tag_id / ingredient_id
}

type attributeRow struct {
	ID        int64
	UserID    int64
	Name      string
	CreatedAt time.Time
}

func (t attributeTable) list(ctx context.Context, userID int64, assignedOnly bool) ([]attributeRow, error) {
	query := fmt.Sprintf(`SELECT a.id, a.user_id, a.name, a.created_at FROM %s a WHERE a.user_id = $1`, t.table)
	if assignedOnly {
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM %s j WHERE j.%s = a.id)`, t.joinTable, t.joinColumn)
	}
	query += ` ORDER BY a.name DESC, a.id DESC`

	rows, err := t.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.table, err)
	}
	defer rows.Close()

	var result []attributeRow
	for rows.Next() {
		var row attributeRow
		if err := rows.Scan(&row.ID, &row.UserID, &row.Name, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.table, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", t.table, err)
	}
	return result, nil
}

func (t attributeTable) create(ctx context.Context, userID int64, name string) (attributeRow, error) {
	row := attributeRow{UserID: userID, Name: name}
	err := t.db.QueryRowContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (user_id, name) VALUES ($1, $2) RETURNING id, created_at`, t.table),
		userID, name,
	).Scan(&row.ID, &row.CreatedAt)
	if err != nil {
		return attributeRow{}, fmt.Errorf("failed to insert into %s: %w", t.table, err)
	}
	return row, nil
}

func (t attributeTable) ownedIDs(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := t.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE user_id = $1 AND id = ANY($2)`, t.table),
		userID, pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s ownership: %w", t.table, err)
	}
	defer rows.Close()

	var owned []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", t.table, err)
		}
		owned = append(owned, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s ids: %w", t.table, err)
	}
	return owned, nil
}

// PostgresTagRepo はPostgreSQLを使用したタグリポジトリ。
type PostgresTagRepo struct {
	t attributeTable
}

// NewPostgresTagRepo はPostgresTagRepoを生成する。
func NewPostgresTagRepo(db *sql.DB) *PostgresTagRepo {
	return &PostgresTagRepo{t: attributeTable{db: db, table: "tags", joinTable: "recipe_tags", joinColumn: "tag_id"}}
}

// ListByUser はユーザーのタグを名前の降順で返す。
func (repo *PostgresTagRepo) ListByUser(ctx context.Context, userID int64, assignedOnly bool) ([]model.Tag, error) {
	rows, err := repo.t.list(ctx, userID, assignedOnly)
	if err != nil {
		return nil, err
	}
	tags := make([]model.Tag, len(rows))
	for i, row := range rows {
		tags[i] = model.Tag(row)
	}
	return tags, nil
}

// Create はタグを作成する。
func (repo *PostgresTagRepo) Create(ctx context.Context, tag *model.Tag) error {
	row, err := repo.t.create(ctx, tag.UserID, tag.Name)
	if err != nil {
		return err
	}
	tag.ID = row.ID
	tag.CreatedAt = row.CreatedAt
	return nil
}

// OwnedIDs はidsのうちuserIDが所有するタグIDを返す。
func (repo *PostgresTagRepo) OwnedIDs(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	return repo.t.ownedIDs(ctx, userID, ids)
}

// PostgresIngredientRepo はPostgreSQLを使用した材料リポジトリ。
type PostgresIngredientRepo struct {
	t attributeTable
}

// NewPostgresIngredientRepo はPostgresIngredientRepoを生成する。
func NewPostgresIngredientRepo(db *sql.DB) *PostgresIngredientRepo {
	return &PostgresIngredientRepo{t: attributeTable{db: db, table: "ingredients", joinTable: "recipe_ingredients", joinColumn: "ingredient_id"}}
}

// ListByUser はユーザーの材料を名前の降順で返す。
func (repo *PostgresIngredientRepo) ListByUser(ctx context.Context, userID int64, assignedOnly bool) ([]model.Ingredient, error) {
	rows, err := repo.t.list(ctx, userID, assignedOnly)
	if err != nil {
		return nil, err
	}
	ingredients := make([]model.Ingredient, len(rows))
	for i, row := range rows {
		ingredients[i] = model.Ingredient(row)
	}
	return ingredients, nil
}

// Create は材料を作成する。
func (repo *PostgresIngredientRepo) Create(ctx context.Context, ingredient *model.Ingredient) error {
	row, err := repo.t.create(ctx, ingredient.UserID, ingredient.Name)
	if err != nil {
		return err
	}
	ingredient.ID = row.ID
	ingredient.CreatedAt = row.CreatedAt
	return nil
}

// OwnedIDs はidsのうちuserIDが所有する材料IDを返す。
func (repo *PostgresIngredientRepo) OwnedIDs(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	return repo.t.ownedIDs(ctx, userID, ids)
}

// compile-time interface check
var (
	_ TagRepository        = (*PostgresTagRepo)(nil)
	_ IngredientRepository = (*PostgresIngredientRepo)(nil)
)
