// Command seed-db loads the product catalog, delivery reference data, and an
// admin API key into the database.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/alfoods/storefront/internal/domain/auth"
	"github.com/alfoods/storefront/internal/domain/catalog"
	"github.com/alfoods/storefront/internal/domain/delivery"
	"github.com/alfoods/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Tag         string `json:"tag"`
	BestSeller  bool   `json:"best_seller"`
	New         bool   `json:"new"`
	PriceTiers  []struct {
		Weight string          `json:"weight"`
		Price  decimal.Decimal `json:"price"`
	} `json:"price_tiers"`
	StockCount      *int32   `json:"stock_count"`
	AvailableCities []string `json:"available_cities"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or STORE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("STORE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STORE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STORE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedReferenceData(ctx, postgres.NewCitySettingsRepository(pool)); err != nil {
		return errors.Wrap(err, "seed reference data")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		tiers := make([]catalog.PriceTier, len(p.PriceTiers))
		for i, t := range p.PriceTiers {
			tiers[i] = catalog.PriceTier{WeightLabel: t.Weight, UnitPrice: t.Price}
		}

		if err := repo.Upsert(ctx, &catalog.Product{
			ID:              p.ID,
			Name:            p.Name,
			Category:        p.Category,
			Description:     p.Description,
			Image:           p.Image,
			Tag:             p.Tag,
			BestSeller:      p.BestSeller,
			New:             p.New,
			PriceTiers:      tiers,
			StockCount:      p.StockCount,
			AvailableCities: p.AvailableCities,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedReferenceData(ctx context.Context, repo *postgres.CitySettingsRepository) error {
	slog.Info("seeding delivery cities and states")

	for _, c := range delivery.DefaultCities() {
		if err := repo.Upsert(ctx, &c); err != nil {
			return errors.Wrapf(err, "upsert city %s", c.Name)
		}
	}
	for _, s := range delivery.DefaultStates() {
		if err := repo.UpsertState(ctx, s); err != nil {
			return errors.Wrapf(err, "upsert state %s", s.Name)
		}
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if err := repo.Insert(ctx, &auth.APIKeyInfo{
		ID:      "default",
		KeyHash: keyHash,
		Name:    "Default admin key",
		Scopes:  []string{"admin"},
	}); err != nil {
		return errors.Wrap(err, "insert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))

	return nil
}
