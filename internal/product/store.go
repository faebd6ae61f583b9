package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInsufficientStock は在庫数が要求数量に満たないことを表す。
var ErrInsufficientStock = errors.New("在庫が不足している")

// ErrInactiveProduct は販売停止中の商品を予約しようとしたことを表す。
var ErrInactiveProduct = errors.New("商品が販売停止中")

// Category はcategoriesテーブルの1行。
type Category struct {
	// ID はカテゴリの一意識別子。
	ID int64
	// Name はカテゴリ名。
	Name string
	// Description はカテゴリの説明。
	Description string
}

// Product はproductsテーブルの1行。
type Product struct {
	// ID は商品の一意識別子。
	ID int64
	// CategoryID は所属カテゴリのID。未分類の場合は0。
	CategoryID int64
	// Name は商品名。
	Name string
	// Description は商品の説明。
	Description string
	// Price は価格。
	Price decimal.Decimal
	// StockQuantity は在庫数。
	StockQuantity int
	// IsActive は販売中フラグ。
	IsActive bool
}

// Store は商品とカテゴリの永続化を担当する。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewStore は新しい商品ストアを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanProduct は1行を読み取ってProductに変換する。
func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	var priceText string
	if err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &priceText, &p.StockQuantity, &p.IsActive); err != nil {
		return Product{}, err
	}

	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return Product{}, fmt.Errorf("価格の解析に失敗: %w", err)
	}
	p.Price = price
	return p, nil
}

// productColumns はProductの取得に使う共通のSELECT句。
const productColumns = `id, COALESCE(category_id, 0), name, description, price, stock_quantity, is_active`

// ListProducts は販売中の商品一覧を返す。
// categoryIDが0より大きい場合はカテゴリで絞り込む。
func (s *Store) ListProducts(ctx context.Context, categoryID int64) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE is_active = 1`
	args := []any{}
	if categoryID > 0 {
		query += ` AND category_id = ?`
		args = append(args, categoryID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetProduct はIDで商品を検索する。
// 見つからない場合はsql.ErrNoRowsを返す。
func (s *Store) GetProduct(ctx context.Context, id int64) (Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

// CreateProduct は新しい商品を登録する。
func (s *Store) CreateProduct(ctx context.Context, p Product) (Product, error) {
	var categoryID any
	if p.CategoryID > 0 {
		categoryID = p.CategoryID
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO products (category_id, name, description, price, stock_quantity, is_active) VALUES (?, ?, ?, ?, ?, ?)`,
		categoryID, p.Name, p.Description, p.Price.String(), p.StockQuantity, p.IsActive,
	)
	if err != nil {
		return Product{}, fmt.Errorf("商品の登録に失敗: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Product{}, fmt.Errorf("登録した商品IDの取得に失敗: %w", err)
	}
	p.ID = id
	return p, nil
}

// Reserve は商品在庫を予約（減算）する。
// 在庫数が足りる販売中の商品に対してのみ減算し、在庫数は負にならない。
// 減算後の在庫数を返す。商品が存在しない場合はsql.ErrNoRows、
// 販売停止中はErrInactiveProduct、在庫不足はErrInsufficientStockを返す。
func (s *Store) Reserve(ctx context.Context, id int64, quantity int) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE products SET stock_quantity = stock_quantity - ?, updated_at = datetime('now')
		 WHERE id = ? AND is_active = 1 AND stock_quantity >= ?`,
		quantity, id, quantity,
	)
	if err != nil {
		return 0, fmt.Errorf("在庫の予約に失敗: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新行数の取得に失敗: %w", err)
	}
	if affected == 0 {
		// 失敗理由を特定するために商品を取得する
		p, err := s.GetProduct(ctx, id)
		if err != nil {
			return 0, err
		}
		if !p.IsActive {
			return 0, ErrInactiveProduct
		}
		return 0, ErrInsufficientStock
	}

	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.StockQuantity, nil
}

// Release は予約済み在庫を解放（加算）する。
// 解放後の在庫数を返す。商品が存在しない場合はsql.ErrNoRowsを返す。
func (s *Store) Release(ctx context.Context, id int64, quantity int) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE products SET stock_quantity = stock_quantity + ?, updated_at = datetime('now') WHERE id = ?`,
		quantity, id,
	)
	if err != nil {
		return 0, fmt.Errorf("在庫の解放に失敗: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新行数の取得に失敗: %w", err)
	}
	if affected == 0 {
		return 0, sql.ErrNoRows
	}

	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.StockQuantity, nil
}

// ListCategories はカテゴリ一覧を返す。
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateCategory は新しいカテゴリを登録する。
func (s *Store) CreateCategory(ctx context.Context, name, description string) (Category, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (name, description) VALUES (?, ?)`,
		name, description,
	)
	if err != nil {
		return Category{}, fmt.Errorf("カテゴリの登録に失敗: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Category{}, fmt.Errorf("登録したカテゴリIDの取得に失敗: %w", err)
	}
	return Category{ID: id, Name: name, Description: description}, nil
}
