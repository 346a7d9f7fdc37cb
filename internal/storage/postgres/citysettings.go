package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alfoods/storefront/internal/domain/delivery"
)

const (
	getCitySQL = `SELECT name, base_charge, free_delivery_threshold, state
		FROM city_settings WHERE name = $1`

	listCitiesSQL = `SELECT name, base_charge, free_delivery_threshold, state
		FROM city_settings ORDER BY name`

	upsertCitySQL = `INSERT INTO city_settings (name, base_charge, free_delivery_threshold, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			base_charge = EXCLUDED.base_charge,
			free_delivery_threshold = EXCLUDED.free_delivery_threshold,
			state = EXCLUDED.state`

	deleteCitySQL = `DELETE FROM city_settings WHERE name = $1`

	listStatesSQL = `SELECT name, enabled FROM states ORDER BY name`

	upsertStateSQL = `INSERT INTO states (name, enabled) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET enabled = EXCLUDED.enabled`
)

var (
	_ delivery.Repository      = (*CitySettingsRepository)(nil)
	_ delivery.StateRepository = (*CitySettingsRepository)(nil)
)

// CitySettingsRepository implements delivery.Repository and
// delivery.StateRepository backed by PostgreSQL.
type CitySettingsRepository struct {
	pool *pgxpool.Pool
}

// NewCitySettingsRepository returns a CitySettingsRepository that uses the
// given pool.
func NewCitySettingsRepository(pool *pgxpool.Pool) *CitySettingsRepository {
	return &CitySettingsRepository{pool: pool}
}

// Get returns the delivery settings for one city.
func (r *CitySettingsRepository) Get(ctx context.Context, city string) (*delivery.CitySettings, error) {
	rows, err := r.pool.Query(ctx, getCitySQL, city)
	if err != nil {
		return nil, errors.Wrapf(err, "getting city %q", city)
	}

	s, err := pgx.CollectExactlyOneRow(rows, scanCitySettings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, delivery.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting city %q", city)
	}
	return &s, nil
}

// List returns every configured city ordered by name.
func (r *CitySettingsRepository) List(ctx context.Context) ([]delivery.CitySettings, error) {
	rows, err := r.pool.Query(ctx, listCitiesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing cities")
	}
	return pgx.CollectRows(rows, scanCitySettings)
}

// Upsert inserts or replaces a city's delivery settings.
func (r *CitySettingsRepository) Upsert(ctx context.Context, s *delivery.CitySettings) error {
	_, err := r.pool.Exec(ctx, upsertCitySQL,
		s.Name, s.BaseCharge, s.FreeDeliveryThreshold, s.State,
	)
	if err != nil {
		return errors.Wrapf(err, "upserting city %q", s.Name)
	}
	return nil
}

// Delete removes a city's delivery settings.
func (r *CitySettingsRepository) Delete(ctx context.Context, city string) error {
	tag, err := r.pool.Exec(ctx, deleteCitySQL, city)
	if err != nil {
		return errors.Wrapf(err, "deleting city %q", city)
	}
	if tag.RowsAffected() == 0 {
		return delivery.ErrNotFound
	}
	return nil
}

// ListStates returns every shipping state ordered by name.
func (r *CitySettingsRepository) ListStates(ctx context.Context) ([]delivery.State, error) {
	rows, err := r.pool.Query(ctx, listStatesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing states")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (delivery.State, error) {
		var s delivery.State
		err := row.Scan(&s.Name, &s.Enabled)
		return s, err
	})
}

// UpsertState inserts or replaces one shipping state. Used by seeding.
func (r *CitySettingsRepository) UpsertState(ctx context.Context, s delivery.State) error {
	_, err := r.pool.Exec(ctx, upsertStateSQL, s.Name, s.Enabled)
	if err != nil {
		return errors.Wrapf(err, "upserting state %q", s.Name)
	}
	return nil
}

func scanCitySettings(row pgx.CollectableRow) (delivery.CitySettings, error) {
	var s delivery.CitySettings
	err := row.Scan(&s.Name, &s.BaseCharge, &s.FreeDeliveryThreshold, &s.State)
	return s, err
}
