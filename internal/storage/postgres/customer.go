package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alfoods/storefront/internal/domain/customer"
)

const (
	upsertProfileSQL = `INSERT INTO customer_profiles
		(identifier, customer_name, email, phone, door_no, building, street, city, state, pincode, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (identifier) DO UPDATE SET
			customer_name = EXCLUDED.customer_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			door_no = EXCLUDED.door_no,
			building = EXCLUDED.building,
			street = EXCLUDED.street,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			pincode = EXCLUDED.pincode,
			updated_at = EXCLUDED.updated_at`

	getProfileSQL = `SELECT identifier, customer_name, email, phone,
		door_no, building, street, city, state, pincode, updated_at
		FROM customer_profiles WHERE identifier = $1`
)

var _ customer.Repository = (*ProfileRepository)(nil)

// ProfileRepository implements customer.Repository backed by PostgreSQL.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a ProfileRepository that uses the given pool.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// Upsert writes the profile snapshot for one identifier, last write wins.
func (r *ProfileRepository) Upsert(ctx context.Context, p *customer.Profile) error {
	_, err := r.pool.Exec(ctx, upsertProfileSQL,
		p.Identifier, p.CustomerName, p.Email, p.Phone,
		p.DoorNo, p.Building, p.Street, p.City, p.State, p.Pincode,
		p.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "upserting profile %q", p.Identifier)
	}
	return nil
}

// Get returns the profile for an identifier.
func (r *ProfileRepository) Get(ctx context.Context, identifier string) (*customer.Profile, error) {
	var p customer.Profile
	err := r.pool.QueryRow(ctx, getProfileSQL, identifier).Scan(
		&p.Identifier, &p.CustomerName, &p.Email, &p.Phone,
		&p.DoorNo, &p.Building, &p.Street, &p.City, &p.State, &p.Pincode,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting profile %q", identifier)
	}
	return &p, nil
}
