package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"resale-market/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	// ErrProductStatusMismatch means a conditional status update matched no row
	ErrProductStatusMismatch = errors.New("product status changed concurrently")
)

const productColumns = `id, seller_id, title, description, brand, size, condition, image_url, price, currency, status, created_at, updated_at`

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error)
	Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to domain.ProductStatus) (*domain.Product, error)
	Reserve(ctx context.Context, id uuid.UUID, order *domain.Order) (*domain.Product, error)
	ReleaseReservation(ctx context.Context, id uuid.UUID) (bool, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.SellerID,
		&p.Title,
		&p.Description,
		&p.Brand,
		&p.Size,
		&p.Condition,
		&p.ImageURL,
		&p.Price,
		&p.Currency,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

// Create inserts a new listing using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, seller_id, title, description, brand, size, condition, image_url, price, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.SellerID,
		product.Title,
		product.Description,
		product.Brand,
		product.Size,
		product.Condition,
		product.ImageURL,
		product.Price,
		product.Currency,
		product.Status,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// CompareAndSetStatus moves a product from one status to another in a single
// conditional statement and returns the row as it is after the update.
// ErrProductStatusMismatch means another writer got there first, or the
// product was never in the expected state.
func (r *productRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to domain.ProductStatus) (*domain.Product, error) {
	query := `
		UPDATE products
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + productColumns

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id, from, to))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductStatusMismatch
		}
		return nil, fmt.Errorf("failed to update product status: %w", err)
	}

	return product, nil
}

// Reserve moves an AVAILABLE product to RESERVED and inserts order in the
// same transaction, so no reader ever sees the hold without its order. The
// order takes seller, amount and currency from the reserved row.
// ErrProductStatusMismatch means the product was not AVAILABLE; on
// ErrActiveOrderExists nothing was written.
func (r *productRepository) Reserve(ctx context.Context, id uuid.UUID, order *domain.Order) (*domain.Product, error) {
	query := `
		UPDATE products
		SET status = 'RESERVED', updated_at = NOW()
		WHERE id = $1 AND status = 'AVAILABLE'
		RETURNING ` + productColumns

	var snapshot *domain.Product
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		product, err := scanProduct(tx.QueryRowContext(ctx, query, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrProductStatusMismatch
			}
			return fmt.Errorf("failed to reserve product: %w", err)
		}

		order.ProductID = product.ID
		order.SellerID = product.SellerID
		order.Amount = product.Price
		order.Currency = product.Currency
		if err := insertOrder(ctx, tx, order); err != nil {
			return err
		}

		snapshot = product
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// ReleaseReservation returns a RESERVED product to AVAILABLE unless some
// live order still references it. Returns false when nothing was released.
func (r *productRepository) ReleaseReservation(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE products
		SET status = 'AVAILABLE', updated_at = NOW()
		WHERE id = $1
		  AND status = 'RESERVED'
		  AND NOT EXISTS (
		      SELECT 1 FROM orders
		      WHERE orders.product_id = products.id
		        AND orders.status IN ('PENDING', 'PAID', 'SHIPPED')
		  )
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to release reservation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// List retrieves products with optional status/seller filtering, pagination, and sorting
func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"price":      true,
		"created_at": true,
		"title":      true,
	}

	sortBy := filter.SortBy
	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := "ASC"
	if filter.SortDesc {
		sortOrder = "DESC"
	}

	conditions := []string{}
	args := []interface{}{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.SellerID != nil {
		args = append(args, *filter.SellerID)
		conditions = append(conditions, fmt.Sprintf("seller_id = $%d", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY %s %s, id
		LIMIT $%d OFFSET $%d
	`, productColumns, whereClause, sortBy, sortOrder, len(args)+1, len(args)+2)

	args = append(args, filter.PageSize, pageOffset(filter.Page, filter.PageSize))

	products, err := r.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// Search matches available listings by title, brand or description with ILIKE
func (r *productRepository) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	available := domain.ProductAvailable
	if strings.TrimSpace(query) == "" {
		return r.List(ctx, domain.ProductFilter{Status: &available, SortDesc: true, Page: page, PageSize: pageSize})
	}

	searchPattern := "%" + escapeLike(query) + "%"

	countQuery := `
		SELECT COUNT(*)
		FROM products
		WHERE status = 'AVAILABLE'
		  AND (title ILIKE $1 OR brand ILIKE $1 OR description ILIKE $1)
	`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, searchPattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	searchQuery := `
		SELECT ` + productColumns + `
		FROM products
		WHERE status = 'AVAILABLE'
		  AND (title ILIKE $1 OR brand ILIKE $1 OR description ILIKE $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	products, err := r.queryProducts(ctx, searchQuery, searchPattern, pageSize, pageOffset(page, pageSize))
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *productRepository) queryProducts(ctx context.Context, query string, args ...interface{}) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
