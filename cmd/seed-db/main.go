// Command seed-db loads a small catalog from a JSON file into PostgreSQL,
// for local development and demos.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/money"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type seedSku struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	Stock      int             `json:"stock"`
	TrackStock *bool           `json:"track_stock"`
}

type seedProduct struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Skus        []seedSku `json:"skus"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
		currency    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&currency, "currency", "USD", "currency for entries that omit one")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, currency); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, currency string) error {
	raw, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}
	var products []seedProduct
	if err := json.Unmarshal(raw, &products); err != nil {
		return errors.Wrap(err, "parse catalog file")
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewCatalogRepository(pool)
	var skus int
	for _, sp := range products {
		p := &catalog.Product{
			ID:          uuid.New().String(),
			Name:        sp.Name,
			Description: sp.Description,
			Category:    sp.Category,
			Active:      true,
		}
		if err := repo.CreateProduct(ctx, p); err != nil {
			return errors.Wrapf(err, "create product %q", sp.Name)
		}

		for _, ss := range sp.Skus {
			cur := ss.Currency
			if cur == "" {
				cur = currency
			}
			price, err := money.New(ss.Price, cur)
			if err != nil {
				return errors.Wrapf(err, "price of sku %s", ss.Code)
			}
			trackStock := true
			if ss.TrackStock != nil {
				trackStock = *ss.TrackStock
			}

			err = repo.CreateSku(ctx, &catalog.Sku{
				ID:          uuid.New().String(),
				Code:        ss.Code,
				Name:        ss.Name,
				ProductID:   p.ID,
				ProductName: p.Name,
				Price:       price,
				Stock:       ss.Stock,
				TrackStock:  trackStock,
				Active:      true,
			})
			if err != nil {
				return errors.Wrapf(err, "create sku %s", ss.Code)
			}
			skus++
		}
	}

	slog.Info("seeded catalog", slog.Int("products", len(products)), slog.Int("skus", skus))
	return nil
}
