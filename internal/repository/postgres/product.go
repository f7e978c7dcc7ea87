package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/CatalogSyncGo/internal/domain"
	"github.com/utafrali/CatalogSyncGo/internal/repository"
	"github.com/utafrali/CatalogSyncGo/pkg/database"
	apperrors "github.com/utafrali/CatalogSyncGo/pkg/errors"
)

// productColumns is the standard SELECT column list for products.
const productColumns = `id, title, description, price, discount_percentage, rating, stock,
	brand, sku, availability_status, thumbnail, weight, barcode, qr_code,
	warranty_information, shipping_information, return_policy, minimum_order_quantity,
	created_at, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// UpsertBatch persists each product in its own transaction so a failure on
// one record cannot take down the rest of the batch. Within a record's
// transaction the order is fixed: categories first, then the product row,
// then full facet replacement.
func (r *ProductRepository) UpsertBatch(ctx context.Context, products []domain.Product) (repository.UpsertResult, error) {
	var result repository.UpsertResult

	for i := range products {
		p := &products[i]

		inserted, err := r.upsertOne(ctx, p)
		if err != nil {
			result.Failed = append(result.Failed, repository.RecordFailure{
				ProductID: p.ID,
				Err:       err,
				Reason:    err.Error(),
			})
			continue
		}

		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

// upsertOne runs the per-record sub-transaction. The bool result reports
// whether the product row was newly inserted (as opposed to updated).
func (r *ProductRepository) upsertOne(ctx context.Context, p *domain.Product) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	categoryIDs, err := upsertCategories(ctx, tx, p.Categories)
	if err != nil {
		return false, err
	}

	inserted, err := upsertProductRow(ctx, tx, p)
	if err != nil {
		return false, err
	}

	if err := replaceCategoryLinks(ctx, tx, p.ID, categoryIDs); err != nil {
		return false, err
	}
	if err := replaceFacets(ctx, tx, p); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit upsert tx: %w", err)
	}
	return inserted, nil
}

// upsertCategories resolves each category name to a row id, creating rows as
// needed. It runs before the product upsert so the join insert never dangles.
func upsertCategories(ctx context.Context, tx pgx.Tx, categories []domain.Category) ([]int64, error) {
	query := `
		INSERT INTO categories (name, slug, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
		RETURNING id`

	now := time.Now().UTC()
	ids := make([]int64, 0, len(categories))
	for _, c := range categories {
		var id int64
		if err := tx.QueryRow(ctx, query, c.Name, c.Slug, now).Scan(&id); err != nil {
			return nil, fmt.Errorf("upsert category %q: %w", c.Slug, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// upsertProductRow inserts or updates the product keyed by its external id.
// The xmax trick distinguishes a fresh insert from a conflict update without
// a second round trip.
func upsertProductRow(ctx context.Context, tx pgx.Tx, p *domain.Product) (bool, error) {
	query := `
		INSERT INTO products (id, title, description, price, discount_percentage, rating, stock,
			brand, sku, availability_status, thumbnail, weight, barcode, qr_code,
			warranty_information, shipping_information, return_policy, minimum_order_quantity,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $19)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			discount_percentage = EXCLUDED.discount_percentage,
			rating = EXCLUDED.rating,
			stock = EXCLUDED.stock,
			brand = EXCLUDED.brand,
			sku = EXCLUDED.sku,
			availability_status = EXCLUDED.availability_status,
			thumbnail = EXCLUDED.thumbnail,
			weight = EXCLUDED.weight,
			barcode = EXCLUDED.barcode,
			qr_code = EXCLUDED.qr_code,
			warranty_information = EXCLUDED.warranty_information,
			shipping_information = EXCLUDED.shipping_information,
			return_policy = EXCLUDED.return_policy,
			minimum_order_quantity = EXCLUDED.minimum_order_quantity,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted`

	now := time.Now().UTC()

	var inserted bool
	err := tx.QueryRow(ctx, query,
		p.ID,
		p.Title,
		p.Description,
		p.Price,
		p.DiscountPercentage,
		p.Rating,
		p.Stock,
		nullString(p.Brand),
		nullString(p.SKU),
		p.AvailabilityStatus,
		nullString(p.Thumbnail),
		p.Weight,
		nullString(p.Barcode),
		nullString(p.QRCode),
		p.WarrantyInformation,
		p.ShippingInformation,
		p.ReturnPolicy,
		p.MinimumOrderQuantity,
		now,
	).Scan(&inserted)
	if err != nil {
		if isUniqueViolation(err) {
			return false, apperrors.Conflict("product", "sku", p.SKU)
		}
		return false, fmt.Errorf("upsert product %d: %w", p.ID, err)
	}
	return inserted, nil
}

// replaceCategoryLinks rebuilds the product-category join rows.
func replaceCategoryLinks(ctx context.Context, tx pgx.Tx, productID int64, categoryIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM product_categories WHERE product_id = $1`, productID); err != nil {
		return fmt.Errorf("clear category links for product %d: %w", productID, err)
	}
	for _, cid := range categoryIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO product_categories (product_id, category_id) VALUES ($1, $2)`,
			productID, cid,
		)
		if err != nil {
			return fmt.Errorf("link product %d to category %d: %w", productID, cid, err)
		}
	}
	return nil
}

// replaceFacets replaces the full facet set for the product: delete then
// insert, never diff. Facets have no independent identity so nothing
// references the deleted rows.
func replaceFacets(ctx context.Context, tx pgx.Tx, p *domain.Product) error {
	for _, table := range []string{"product_images", "product_tags", "product_reviews", "product_dimensions"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE product_id = $1`, table), p.ID); err != nil {
			return fmt.Errorf("clear %s for product %d: %w", table, p.ID, err)
		}
	}

	for _, img := range p.Images {
		_, err := tx.Exec(ctx,
			`INSERT INTO product_images (product_id, url, sort_order) VALUES ($1, $2, $3)`,
			p.ID, img.URL, img.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("insert image for product %d: %w", p.ID, err)
		}
	}

	for _, tag := range p.Tags {
		_, err := tx.Exec(ctx,
			`INSERT INTO product_tags (product_id, tag) VALUES ($1, $2)`,
			p.ID, tag,
		)
		if err != nil {
			return fmt.Errorf("insert tag for product %d: %w", p.ID, err)
		}
	}

	for _, rev := range p.Reviews {
		_, err := tx.Exec(ctx,
			`INSERT INTO product_reviews (product_id, rating, comment, reviewer_name, reviewer_email, reviewed_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID, rev.Rating, rev.Comment, rev.ReviewerName, rev.ReviewerEmail, rev.ReviewedAt,
		)
		if err != nil {
			return fmt.Errorf("insert review for product %d: %w", p.ID, err)
		}
	}

	if p.Dimensions != nil {
		_, err := tx.Exec(ctx,
			`INSERT INTO product_dimensions (product_id, width, height, depth) VALUES ($1, $2, $3, $4)`,
			p.ID, p.Dimensions.Width, p.Dimensions.Height, p.Dimensions.Depth,
		)
		if err != nil {
			return fmt.Errorf("insert dimensions for product %d: %w", p.ID, err)
		}
	}

	return nil
}

// GetByID retrieves a product with its categories and facets.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	p, err := r.scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", fmt.Sprintf("%d", id))
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}

	if err := r.loadCategories(ctx, p); err != nil {
		return nil, err
	}
	if err := r.loadFacets(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// List returns products matching the given filter with the total count.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.CategorySlug != nil {
		conditions = append(conditions, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM product_categories pc
				JOIN categories c ON c.id = pc.category_id
				WHERE pc.product_id = p.id AND c.slug = $%d)`, argIndex))
		args = append(args, *filter.CategorySlug)
		argIndex++
	}

	if filter.Brand != nil {
		conditions = append(conditions, fmt.Sprintf("p.brand = $%d", argIndex))
		args = append(args, *filter.Brand)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(p.title ILIKE $%d OR p.description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price >= $%d", argIndex))
		args = append(args, *filter.MinPrice)
		argIndex++
	}

	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price <= $%d", argIndex))
		args = append(args, *filter.MaxPrice)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// count(*) OVER() folds the total count into the page query.
	query := fmt.Sprintf(`
		SELECT p.id, p.title, p.description, p.price, p.discount_percentage, p.rating, p.stock,
			p.brand, p.sku, p.availability_status, p.thumbnail, p.weight, p.barcode, p.qr_code,
			p.warranty_information, p.shipping_information, p.return_policy, p.minimum_order_quantity,
			p.created_at, p.updated_at,
			count(*) OVER() AS total_count
		FROM products p
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		whereClause, orderClause(filter.SortBy), argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		products   []domain.Product
		totalCount int
	)

	for rows.Next() {
		var p domain.Product
		var brand, sku, thumbnail, barcode, qrCode *string
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Description, &p.Price, &p.DiscountPercentage,
			&p.Rating, &p.Stock, &brand, &sku, &p.AvailabilityStatus, &thumbnail,
			&p.Weight, &barcode, &qrCode,
			&p.WarrantyInformation, &p.ShippingInformation, &p.ReturnPolicy, &p.MinimumOrderQuantity,
			&p.CreatedAt, &p.UpdatedAt, &totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		p.Brand = deref(brand)
		p.SKU = deref(sku)
		p.Thumbnail = deref(thumbnail)
		p.Barcode = deref(barcode)
		p.QRCode = deref(qrCode)
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	if products == nil {
		products = []domain.Product{}
	}

	return products, totalCount, nil
}

// ListPage walks products in id order for bulk re-indexing. Categories and
// tags are loaded for each product because the index document embeds them.
func (r *ProductRepository) ListPage(ctx context.Context, offset, limit int) ([]domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products ORDER BY id ASC LIMIT $1 OFFSET $2`, productColumns)

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list product page: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := r.scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product page row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product page: %w", err)
	}

	for i := range products {
		if err := r.loadCategories(ctx, &products[i]); err != nil {
			return nil, err
		}
		if err := r.loadTags(ctx, &products[i]); err != nil {
			return nil, err
		}
	}

	return products, nil
}

// Ping verifies store connectivity.
func (r *ProductRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (r *ProductRepository) loadCategories(ctx context.Context, p *domain.Product) error {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.slug, c.created_at, c.updated_at
		FROM categories c
		JOIN product_categories pc ON pc.category_id = c.id
		WHERE pc.product_id = $1
		ORDER BY c.name ASC`, p.ID)
	if err != nil {
		return fmt.Errorf("load categories for product %d: %w", p.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return fmt.Errorf("scan category row: %w", err)
		}
		p.Categories = append(p.Categories, c)
	}
	return rows.Err()
}

func (r *ProductRepository) loadTags(ctx context.Context, p *domain.Product) error {
	rows, err := r.pool.Query(ctx,
		`SELECT tag FROM product_tags WHERE product_id = $1 ORDER BY tag ASC`, p.ID)
	if err != nil {
		return fmt.Errorf("load tags for product %d: %w", p.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return fmt.Errorf("scan tag row: %w", err)
		}
		p.Tags = append(p.Tags, tag)
	}
	return rows.Err()
}

func (r *ProductRepository) loadFacets(ctx context.Context, p *domain.Product) error {
	if err := r.loadTags(ctx, p); err != nil {
		return err
	}

	imgRows, err := r.pool.Query(ctx,
		`SELECT product_id, url, sort_order FROM product_images WHERE product_id = $1 ORDER BY sort_order ASC`, p.ID)
	if err != nil {
		return fmt.Errorf("load images for product %d: %w", p.ID, err)
	}
	defer imgRows.Close()
	for imgRows.Next() {
		var img domain.ProductImage
		if err := imgRows.Scan(&img.ProductID, &img.URL, &img.SortOrder); err != nil {
			return fmt.Errorf("scan image row: %w", err)
		}
		p.Images = append(p.Images, img)
	}
	if err := imgRows.Err(); err != nil {
		return err
	}

	revRows, err := r.pool.Query(ctx, `
		SELECT product_id, rating, comment, reviewer_name, reviewer_email, reviewed_at
		FROM product_reviews WHERE product_id = $1 ORDER BY reviewed_at DESC`, p.ID)
	if err != nil {
		return fmt.Errorf("load reviews for product %d: %w", p.ID, err)
	}
	defer revRows.Close()
	for revRows.Next() {
		var rev domain.ProductReview
		if err := revRows.Scan(&rev.ProductID, &rev.Rating, &rev.Comment, &rev.ReviewerName, &rev.ReviewerEmail, &rev.ReviewedAt); err != nil {
			return fmt.Errorf("scan review row: %w", err)
		}
		p.Reviews = append(p.Reviews, rev)
	}
	if err := revRows.Err(); err != nil {
		return err
	}

	var dim domain.ProductDimensions
	err = r.pool.QueryRow(ctx,
		`SELECT product_id, width, height, depth FROM product_dimensions WHERE product_id = $1`, p.ID,
	).Scan(&dim.ProductID, &dim.Width, &dim.Height, &dim.Depth)
	switch {
	case err == nil:
		p.Dimensions = &dim
	case errors.Is(err, pgx.ErrNoRows):
		// Dimensions are optional.
	default:
		return fmt.Errorf("load dimensions for product %d: %w", p.ID, err)
	}

	return nil
}

// scanProduct scans one product row from any source implementing pgx.Row.
func (r *ProductRepository) scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	var brand, sku, thumbnail, barcode, qrCode *string

	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Price, &p.DiscountPercentage,
		&p.Rating, &p.Stock, &brand, &sku, &p.AvailabilityStatus, &thumbnail,
		&p.Weight, &barcode, &qrCode,
		&p.WarrantyInformation, &p.ShippingInformation, &p.ReturnPolicy, &p.MinimumOrderQuantity,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Brand = deref(brand)
	p.SKU = deref(sku)
	p.Thumbnail = deref(thumbnail)
	p.Barcode = deref(barcode)
	p.QRCode = deref(qrCode)
	return &p, nil
}

// orderClause maps a sort option to a deterministic ORDER BY. Every ordering
// ends with id ASC so pagination is stable.
func orderClause(sortBy string) string {
	switch sortBy {
	case domain.SortPriceAsc:
		return "p.price ASC, p.id ASC"
	case domain.SortPriceDesc:
		return "p.price DESC, p.id ASC"
	case domain.SortNewest:
		return "p.created_at DESC, p.id ASC"
	default:
		// Relevance has no meaning in SQL; fall back to rating.
		return "p.rating DESC, p.id ASC"
	}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
