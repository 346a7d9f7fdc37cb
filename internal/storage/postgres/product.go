package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alfoods/storefront/internal/domain/catalog"
)

const productColumns = `id, name, category, description, image, tag, best_seller, is_new,
	price_tiers, discount_percent, discount_expiry, stock_count, out_of_stock, available_cities`

const (
	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id`

	// An empty or NULL allow-list means the product ships everywhere.
	listProductsByCitySQL = `SELECT ` + productColumns + ` FROM products
		WHERE available_cities IS NULL
		   OR cardinality(available_cities) = 0
		   OR $1 = ANY(available_cities)
		ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			image = EXCLUDED.image,
			tag = EXCLUDED.tag,
			best_seller = EXCLUDED.best_seller,
			is_new = EXCLUDED.is_new,
			price_tiers = EXCLUDED.price_tiers,
			discount_percent = EXCLUDED.discount_percent,
			discount_expiry = EXCLUDED.discount_expiry,
			stock_count = EXCLUDED.stock_count,
			out_of_stock = EXCLUDED.out_of_stock,
			available_cities = EXCLUDED.available_cities`

	setDiscountSQL = `UPDATE products SET discount_percent = $2, discount_expiry = $3 WHERE id = $1`

	clearDiscountSQL = `UPDATE products SET discount_percent = NULL, discount_expiry = NULL WHERE id = $1`

	setStockSQL = `UPDATE products SET stock_count = $2, out_of_stock = ($2 = 0) WHERE id = $1`

	setOutOfStockSQL = `UPDATE products SET out_of_stock = $2 WHERE id = $1`

	setAvailableCitiesSQL = `UPDATE products SET available_cities = $2 WHERE id = $1`
)

// priceTierRecord is the JSONB shape of one price tier.
type priceTierRecord struct {
	Weight string          `json:"weight"`
	Price  decimal.Decimal `json:"price"`
}

var _ catalog.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalog.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns products ordered by ID. A non-empty city keeps only products
// deliverable there.
func (r *ProductRepository) List(ctx context.Context, city string) ([]catalog.Product, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if city == "" {
		rows, err = r.pool.Query(ctx, listProductsSQL)
	} else {
		rows, err = r.pool.Query(ctx, listProductsByCitySQL, city)
	}
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting product %q", id)
	}
	return &p, nil
}

// Upsert inserts or fully replaces a product row.
func (r *ProductRepository) Upsert(ctx context.Context, p *catalog.Product) error {
	tiers, err := marshalTiers(p.PriceTiers)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Category, p.Description, p.Image, p.Tag,
		p.BestSeller, p.New, tiers,
		p.DiscountPercent, p.DiscountExpiry,
		p.StockCount, p.OutOfStock, p.AvailableCities,
	)
	if err != nil {
		return errors.Wrapf(err, "upserting product %q", p.ID)
	}
	return nil
}

// SetDiscount writes the promotional window for a product.
func (r *ProductRepository) SetDiscount(ctx context.Context, id string, percent decimal.Decimal, expiry string) error {
	return r.updateOne(ctx, setDiscountSQL, "setting discount", id, percent, expiry)
}

// ClearDiscount removes the promotional window from a product.
func (r *ProductRepository) ClearDiscount(ctx context.Context, id string) error {
	return r.updateOne(ctx, clearDiscountSQL, "clearing discount", id)
}

// SetStock writes the tracked stock count. A count of zero also flips the
// out-of-stock flag.
func (r *ProductRepository) SetStock(ctx context.Context, id string, count int32) error {
	return r.updateOne(ctx, setStockSQL, "setting stock", id, count)
}

// SetOutOfStock toggles the manual out-of-stock flag.
func (r *ProductRepository) SetOutOfStock(ctx context.Context, id string, outOfStock bool) error {
	return r.updateOne(ctx, setOutOfStockSQL, "setting stock status", id, outOfStock)
}

// SetAvailableCities replaces the per-city availability allow-list.
func (r *ProductRepository) SetAvailableCities(ctx context.Context, id string, cities []string) error {
	return r.updateOne(ctx, setAvailableCitiesSQL, "setting available cities", id, cities)
}

func (r *ProductRepository) updateOne(ctx context.Context, sql, op, id string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return errors.Wrapf(err, "%s for product %q", op, id)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p        catalog.Product
		tiersRaw []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Category, &p.Description, &p.Image, &p.Tag,
		&p.BestSeller, &p.New, &tiersRaw,
		&p.DiscountPercent, &p.DiscountExpiry,
		&p.StockCount, &p.OutOfStock, &p.AvailableCities,
	)
	if err != nil {
		return p, err
	}

	var records []priceTierRecord
	if err := json.Unmarshal(tiersRaw, &records); err != nil {
		return p, errors.Wrapf(err, "decoding price tiers for product %q", p.ID)
	}
	p.PriceTiers = make([]catalog.PriceTier, len(records))
	for i, rec := range records {
		p.PriceTiers[i] = catalog.PriceTier{WeightLabel: rec.Weight, UnitPrice: rec.Price}
	}
	return p, nil
}

func marshalTiers(tiers []catalog.PriceTier) ([]byte, error) {
	records := make([]priceTierRecord, len(tiers))
	for i, t := range tiers {
		records[i] = priceTierRecord{Weight: t.WeightLabel, Price: t.UnitPrice}
	}
	out, err := json.Marshal(records)
	if err != nil {
		return nil, errors.Wrap(err, "encoding price tiers")
	}
	return out, nil
}
