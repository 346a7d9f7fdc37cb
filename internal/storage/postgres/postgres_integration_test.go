package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alfoods/storefront/internal/domain/auth"
	"github.com/alfoods/storefront/internal/domain/catalog"
	"github.com/alfoods/storefront/internal/domain/customer"
	"github.com/alfoods/storefront/internal/domain/delivery"
	"github.com/alfoods/storefront/internal/domain/order"
	"github.com/alfoods/storefront/internal/storage/postgres"
)

// StorageIntegrationTestSuite runs the repositories against a real PostgreSQL
// container.
type StorageIntegrationTestSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool

	products *postgres.ProductRepository
	orders   *postgres.OrderRepository
	cities   *postgres.CitySettingsRepository
	apikeys  *postgres.APIKeyRepository
	profiles *postgres.ProfileRepository
	coverage *postgres.CoverageRepository
}

func (s *StorageIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("storefront"),
		tcpostgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	pool, err := postgres.NewPool(ctx, connStr)
	s.Require().NoError(err)
	s.pool = pool

	s.Require().NoError(postgres.RunMigrations(ctx, pool))

	s.products = postgres.NewProductRepository(pool)
	s.orders = postgres.NewOrderRepository(pool)
	s.cities = postgres.NewCitySettingsRepository(pool)
	s.apikeys = postgres.NewAPIKeyRepository(pool)
	s.profiles = postgres.NewProfileRepository(pool)
	s.coverage = postgres.NewCoverageRepository(pool)
}

func (s *StorageIntegrationTestSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(),
		`TRUNCATE products, orders, city_settings, states, customer_profiles, serviceable_pincodes, api_keys`)
	s.Require().NoError(err)
}

func (s *StorageIntegrationTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *StorageIntegrationTestSuite) seedProduct(id string, stock *int32, cities ...string) *catalog.Product {
	p := &catalog.Product{
		ID:       id,
		Name:     "Kara Boondi " + id,
		Category: "Snacks",
		Tag:      "Traditional",
		PriceTiers: []catalog.PriceTier{
			{WeightLabel: "250g", UnitPrice: decimal.RequireFromString("100.00")},
			{WeightLabel: "500g", UnitPrice: decimal.RequireFromString("190.00")},
		},
		StockCount:      stock,
		AvailableCities: cities,
	}
	s.Require().NoError(s.products.Upsert(context.Background(), p))
	return p
}

func (s *StorageIntegrationTestSuite) newOrder(code string) *order.Order {
	return &order.Order{
		ID:           uuid.New().String(),
		OrderCode:    code,
		TrackingCode: code + "TRACK",
		CustomerID:   "guest",
		CustomerName: "Lakshmi Devi",
		Email:        "lakshmi@example.com",
		Phone:        "9876543210",
		Address: order.Address{Structured: &order.StructuredAddress{
			DoorNo:  "12-3",
			Street:  "Brodipet 4th Lane",
			City:    "Guntur",
			State:   "Andhra Pradesh",
			Pincode: "522002",
		}},
		City:  "Guntur",
		State: "Andhra Pradesh",
		Items: []order.LineItem{
			{ProductID: "p1", Name: "Kara Boondi p1", Weight: "250g",
				UnitPrice: decimal.RequireFromString("100.00"), Quantity: 2},
		},
		Subtotal:       decimal.RequireFromString("200.00"),
		DeliveryCharge: decimal.RequireFromString("49.00"),
		Total:          decimal.RequireFromString("249.00"),
		PaymentMethod:  "online",
		PaymentStatus:  "completed",
		Status:         order.StatusConfirmed,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *StorageIntegrationTestSuite) TestProductRoundTrip() {
	ctx := context.Background()
	stock := int32(10)
	s.seedProduct("p1", &stock, "Guntur", "Vijayawada")

	got, err := s.products.GetByID(ctx, "p1")
	s.Require().NoError(err)
	s.Equal("Kara Boondi p1", got.Name)
	s.Require().Len(got.PriceTiers, 2)
	s.Equal("250g", got.PriceTiers[0].WeightLabel)
	s.True(decimal.RequireFromString("100.00").Equal(got.PriceTiers[0].UnitPrice))
	s.Require().NotNil(got.StockCount)
	s.Equal(int32(10), *got.StockCount)
	s.Equal([]string{"Guntur", "Vijayawada"}, got.AvailableCities)
}

func (s *StorageIntegrationTestSuite) TestProductNotFound() {
	_, err := s.products.GetByID(context.Background(), "ghost")
	s.ErrorIs(err, catalog.ErrNotFound)
}

func (s *StorageIntegrationTestSuite) TestProductListByCity() {
	ctx := context.Background()
	s.seedProduct("p1", nil)
	s.seedProduct("p2", nil, "Guntur")
	s.seedProduct("p3", nil, "Hyderabad")

	all, err := s.products.List(ctx, "")
	s.Require().NoError(err)
	s.Len(all, 3)

	guntur, err := s.products.List(ctx, "Guntur")
	s.Require().NoError(err)
	s.Require().Len(guntur, 2)
	s.Equal("p1", guntur[0].ID)
	s.Equal("p2", guntur[1].ID)
}

func (s *StorageIntegrationTestSuite) TestProductDiscountLifecycle() {
	ctx := context.Background()
	s.seedProduct("p1", nil)

	s.Require().NoError(s.products.SetDiscount(ctx, "p1",
		decimal.RequireFromString("25"), "2027-12-31"))

	got, err := s.products.GetByID(ctx, "p1")
	s.Require().NoError(err)
	s.Require().NotNil(got.DiscountPercent)
	s.True(decimal.RequireFromString("25").Equal(*got.DiscountPercent))
	s.Require().NotNil(got.DiscountExpiry)
	s.Equal("2027-12-31", *got.DiscountExpiry)

	s.Require().NoError(s.products.ClearDiscount(ctx, "p1"))
	got, err = s.products.GetByID(ctx, "p1")
	s.Require().NoError(err)
	s.Nil(got.DiscountPercent)
	s.Nil(got.DiscountExpiry)
}

func (s *StorageIntegrationTestSuite) TestSetStockZeroFlagsOutOfStock() {
	ctx := context.Background()
	stock := int32(5)
	s.seedProduct("p1", &stock)

	s.Require().NoError(s.products.SetStock(ctx, "p1", 0))

	got, err := s.products.GetByID(ctx, "p1")
	s.Require().NoError(err)
	s.True(got.OutOfStock)
}

func (s *StorageIntegrationTestSuite) TestOrderCreateDecrementsStock() {
	ctx := context.Background()
	stock := int32(5)
	s.seedProduct("p1", &stock)

	o := s.newOrder("AL202506150001")
	err := s.orders.Create(ctx, o, []order.StockDecrement{
		{ProductID: "p1", Name: "Kara Boondi p1", Quantity: 2},
	})
	s.Require().NoError(err)

	got, err := s.products.GetByID(ctx, "p1")
	s.Require().NoError(err)
	s.Require().NotNil(got.StockCount)
	s.Equal(int32(3), *got.StockCount)
	s.False(got.OutOfStock)
}

func (s *StorageIntegrationTestSuite) TestOrderCreateInsufficientStockRollsBack() {
	ctx := context.Background()
	stock := int32(1)
	s.seedProduct("p1", &stock)

	o := s.newOrder("AL202506150002")
	err := s.orders.Create(ctx, o, []order.StockDecrement{
		{ProductID: "p1", Name: "Kara Boondi p1", Quantity: 2},
	})

	var insufficient *order.InsufficientStockError
	s.Require().ErrorAs(err, &insufficient)

	// Neither the order nor the decrement survives.
	_, err = s.orders.FindByCode(ctx, "AL202506150002")
	s.ErrorIs(err, order.ErrNotFound)
	got, err := s.products.GetByID(ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int32(1), *got.StockCount)
}

func (s *StorageIntegrationTestSuite) TestOrderCodeConflict() {
	ctx := context.Background()

	first := s.newOrder("AL202506150003")
	s.Require().NoError(s.orders.Create(ctx, first, nil))

	dup := s.newOrder("AL202506150003")
	dup.TrackingCode = "OTHERTRACK"
	err := s.orders.Create(ctx, dup, nil)
	s.ErrorIs(err, order.ErrCodeConflict)
}

func (s *StorageIntegrationTestSuite) TestOrderRoundTrip() {
	ctx := context.Background()
	o := s.newOrder("AL202506150004")
	s.Require().NoError(s.orders.Create(ctx, o, nil))

	got, err := s.orders.FindByCode(ctx, "AL202506150004")
	s.Require().NoError(err)
	s.Equal(o.ID, got.ID)
	s.Equal(order.StatusConfirmed, got.Status)
	s.Require().NotNil(got.Address.Structured)
	s.Equal("Brodipet 4th Lane", got.Address.Structured.Street)
	s.Equal("522002", got.Address.Structured.Pincode)
	s.Require().Len(got.Items, 1)
	s.Equal(2, got.Items[0].Quantity)
	s.True(o.Total.Equal(got.Total))
}

func (s *StorageIntegrationTestSuite) TestOrderFreeformAddressRoundTrip() {
	ctx := context.Background()
	o := s.newOrder("AL202506150005")
	o.Address = order.Address{Freeform: "12-3 Brodipet, Guntur 522002"}
	s.Require().NoError(s.orders.Create(ctx, o, nil))

	got, err := s.orders.FindByCode(ctx, "AL202506150005")
	s.Require().NoError(err)
	s.Nil(got.Address.Structured)
	s.Equal("12-3 Brodipet, Guntur 522002", got.Address.Freeform)
}

func (s *StorageIntegrationTestSuite) TestFindByIdentifierPrefersNewest() {
	ctx := context.Background()

	older := s.newOrder("AL202506150006")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	s.Require().NoError(s.orders.Create(ctx, older, nil))

	newer := s.newOrder("AL202506150007")
	s.Require().NoError(s.orders.Create(ctx, newer, nil))

	byPhone, err := s.orders.FindByIdentifier(ctx, "9876543210")
	s.Require().NoError(err)
	s.Equal("AL202506150007", byPhone.OrderCode)

	byTracking, err := s.orders.FindByIdentifier(ctx, "AL202506150006TRACK")
	s.Require().NoError(err)
	s.Equal("AL202506150006", byTracking.OrderCode)

	_, err = s.orders.FindByIdentifier(ctx, "nobody@example.com")
	s.ErrorIs(err, order.ErrNotFound)
}

func (s *StorageIntegrationTestSuite) TestOrderStatusAndCancel() {
	ctx := context.Background()
	o := s.newOrder("AL202506150008")
	s.Require().NoError(s.orders.Create(ctx, o, nil))

	s.Require().NoError(s.orders.UpdateStatus(ctx, "AL202506150008", order.StatusProcessing))
	got, err := s.orders.FindByCode(ctx, "AL202506150008")
	s.Require().NoError(err)
	s.Equal(order.StatusProcessing, got.Status)

	s.Require().NoError(s.orders.Cancel(ctx, "AL202506150008", "address unreachable"))
	got, err = s.orders.FindByCode(ctx, "AL202506150008")
	s.Require().NoError(err)
	s.Equal(order.StatusCancelled, got.Status)
	s.True(got.Cancelled)
	s.Equal("address unreachable", got.CancelReason)

	s.ErrorIs(s.orders.UpdateStatus(ctx, "ALNOPE", order.StatusShipped), order.ErrNotFound)
}

func (s *StorageIntegrationTestSuite) TestOrderAdminFields() {
	ctx := context.Background()
	o := s.newOrder("AL202506150009")
	s.Require().NoError(s.orders.Create(ctx, o, nil))

	notes := "call before delivery"
	days := int32(3)
	s.Require().NoError(s.orders.UpdateAdminFields(ctx, "AL202506150009", order.AdminFieldUpdate{
		Notes:        &notes,
		DeliveryDays: &days,
	}))

	got, err := s.orders.FindByCode(ctx, "AL202506150009")
	s.Require().NoError(err)
	s.Equal(notes, got.AdminNotes)
	s.Require().NotNil(got.DeliveryDays)
	s.Equal(int32(3), *got.DeliveryDays)
	// Untouched fields keep their values.
	s.Equal(order.StatusConfirmed, got.Status)
}

func (s *StorageIntegrationTestSuite) TestCitySettingsRoundTrip() {
	ctx := context.Background()
	threshold := decimal.RequireFromString("500")
	s.Require().NoError(s.cities.Upsert(ctx, &delivery.CitySettings{
		Name:                  "Guntur",
		BaseCharge:            decimal.RequireFromString("49"),
		FreeDeliveryThreshold: &threshold,
		State:                 "Andhra Pradesh",
	}))

	got, err := s.cities.Get(ctx, "Guntur")
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("49").Equal(got.BaseCharge))
	s.Require().NotNil(got.FreeDeliveryThreshold)
	s.True(threshold.Equal(*got.FreeDeliveryThreshold))

	s.Require().NoError(s.cities.Delete(ctx, "Guntur"))
	_, err = s.cities.Get(ctx, "Guntur")
	s.ErrorIs(err, delivery.ErrNotFound)
}

func (s *StorageIntegrationTestSuite) TestStates() {
	ctx := context.Background()
	for _, st := range delivery.DefaultStates() {
		s.Require().NoError(s.cities.UpsertState(ctx, st))
	}

	states, err := s.cities.ListStates(ctx)
	s.Require().NoError(err)
	s.Len(states, len(delivery.DefaultStates()))
}

func (s *StorageIntegrationTestSuite) TestProfileUpsertLastWriteWins() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.profiles.Upsert(ctx, &customer.Profile{
		Identifier: "9876543210", CustomerName: "Lakshmi Devi",
		Email: "lakshmi@example.com", Phone: "9876543210",
		City: "Guntur", UpdatedAt: now,
	}))
	s.Require().NoError(s.profiles.Upsert(ctx, &customer.Profile{
		Identifier: "9876543210", CustomerName: "Lakshmi Devi",
		Email: "lakshmi@example.com", Phone: "9876543210",
		City: "Vijayawada", UpdatedAt: now.Add(time.Minute),
	}))

	got, err := s.profiles.Get(ctx, "9876543210")
	s.Require().NoError(err)
	s.Equal("Vijayawada", got.City)

	_, err = s.profiles.Get(ctx, "unknown")
	s.ErrorIs(err, customer.ErrNotFound)
}

func (s *StorageIntegrationTestSuite) TestCoverage() {
	ctx := context.Background()
	s.Require().NoError(s.coverage.InsertBatch(ctx, []string{"522002", "522003", "522002"}))

	n, err := s.coverage.Count(ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	ok, err := s.coverage.Serviceable(ctx, "522002")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.coverage.Serviceable(ctx, "999999")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StorageIntegrationTestSuite) TestAPIKeys() {
	ctx := context.Background()
	s.Require().NoError(s.apikeys.Insert(ctx, &auth.APIKeyInfo{
		ID:      uuid.New().String(),
		KeyHash: "deadbeef",
		Name:    "admin-console",
		Scopes:  []string{"admin"},
	}))

	got, err := s.apikeys.FindByHash(ctx, "deadbeef")
	s.Require().NoError(err)
	s.Equal("admin-console", got.Name)
	s.True(got.HasScope("orders:write"))

	_, err = s.apikeys.FindByHash(ctx, "unknown")
	s.ErrorIs(err, auth.ErrNotFound)
}

func TestStorageIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(StorageIntegrationTestSuite))
}
