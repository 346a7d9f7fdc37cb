package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	insertPincodeSQL = `INSERT INTO serviceable_pincodes (pincode) VALUES ($1)
		ON CONFLICT (pincode) DO NOTHING`

	pincodeExistsSQL = `SELECT EXISTS(SELECT 1 FROM serviceable_pincodes WHERE pincode = $1)`

	countPincodesSQL = `SELECT count(*) FROM serviceable_pincodes`
)

// CoverageRepository stores the serviceable pincode set built by the coverage
// ingest tool and queried at checkout.
type CoverageRepository struct {
	pool *pgxpool.Pool
}

// NewCoverageRepository returns a CoverageRepository that uses the given pool.
func NewCoverageRepository(pool *pgxpool.Pool) *CoverageRepository {
	return &CoverageRepository{pool: pool}
}

// Serviceable reports whether deliveries reach the given pincode.
func (r *CoverageRepository) Serviceable(ctx context.Context, pincode string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, pincodeExistsSQL, pincode).Scan(&ok)
	if err != nil {
		return false, errors.Wrapf(err, "checking pincode %q", pincode)
	}
	return ok, nil
}

// InsertBatch stores a batch of serviceable pincodes, skipping duplicates.
func (r *CoverageRepository) InsertBatch(ctx context.Context, pincodes []string) error {
	batch := &pgx.Batch{}
	for _, p := range pincodes {
		batch.Queue(insertPincodeSQL, p)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for range pincodes {
		if _, err := results.Exec(); err != nil {
			return errors.Wrap(err, "inserting pincodes")
		}
	}
	return nil
}

// Count returns the size of the stored pincode set.
func (r *CoverageRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, countPincodesSQL).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "counting pincodes")
	}
	return n, nil
}
