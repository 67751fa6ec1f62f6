// Command catalog-import loads a gzipped JSONL SKU feed into the catalog.
// Each line is one SKU with its product name, price, and opening stock.
// Files are parsed concurrently; duplicate SKU codes inside the feed are
// dropped through a bloom filter before the exact check hits the database.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/money"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// skuLine is one record of the feed.
type skuLine struct {
	Product     string          `json:"product"`
	Category    string          `json:"category"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Stock       int             `json:"stock"`
	TrackStock  *bool           `json:"track_stock"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
		currency    string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&currency, "currency", "USD", "currency for feed lines that omit one")
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

	if err := run(ctx, dataDir, databaseURL, currency); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL, currency string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", dataDir)
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	imp := newImporter(postgres.NewCatalogRepository(pool), currency)

	lines := make(chan skuLine, 1024)

	g, ctx := errgroup.WithContext(ctx)
	var parsers errgroup.Group
	for _, f := range files {
		parsers.Go(parseFile(ctx, f, lines))
	}
	g.Go(func() error {
		defer close(lines)
		return parsers.Wait()
	})
	g.Go(func() error {
		return imp.consume(ctx, lines)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("import finished",
		slog.Int64("skus", imp.imported),
		slog.Int64("duplicates", imp.duplicates),
		slog.Int64("invalid", imp.invalid),
	)
	return nil
}

// parseFile streams one gzipped JSONL file onto the lines channel.
func parseFile(ctx context.Context, path string, lines chan<- skuLine) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer f.Close()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "gzip reader for %s", path)
		}
		defer gz.Close()

		sc := bufio.NewScanner(gz)
		sc.Buffer(make([]byte, 0, 1<<16), 1<<20)

		var n int
		for sc.Scan() {
			raw := strings.TrimSpace(sc.Text())
			if raw == "" {
				continue
			}
			var line skuLine
			if err := json.Unmarshal([]byte(raw), &line); err != nil {
				slog.Warn("skipping malformed line",
					slog.String("file", filepath.Base(path)), slog.Int("line", n))
				continue
			}

			select {
			case lines <- line:
			case <-ctx.Done():
				return ctx.Err()
			}

			n++
			if n%progressEvery == 0 {
				slog.Info("parsing", slog.String("file", filepath.Base(path)), slog.Int("lines", n))
			}
		}
		return errors.Wrapf(sc.Err(), "scan %s", path)
	}
}

// importer writes feed lines into the catalog, deduplicating SKU codes and
// creating products on first sight.
type importer struct {
	repo     catalog.Repository
	currency string

	mu       sync.Mutex
	seen     *bloom.BloomFilter
	products map[string]string // product name -> id

	imported   int64
	duplicates int64
	invalid    int64
}

func newImporter(repo catalog.Repository, currency string) *importer {
	return &importer{
		repo:     repo,
		currency: currency,
		seen:     bloom.NewWithEstimates(bloomCapacity, bloomFPR),
		products: make(map[string]string),
	}
}

func (imp *importer) consume(ctx context.Context, lines <-chan skuLine) error {
	for line := range lines {
		if err := imp.importLine(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

func (imp *importer) importLine(ctx context.Context, line skuLine) error {
	if line.Code == "" || line.Product == "" || line.Price.IsNegative() {
		imp.invalid++
		return nil
	}

	// Bloom says "maybe seen": fall through to the exact database check,
	// so a false positive can never drop a legitimate SKU.
	if imp.testAndAdd(line.Code) {
		if _, err := imp.repo.GetSkuByCode(ctx, line.Code); err == nil {
			imp.duplicates++
			return nil
		} else if !errors.Is(err, catalog.ErrNotFound) {
			return errors.Wrapf(err, "check sku %s", line.Code)
		}
	}

	productID, err := imp.ensureProduct(ctx, line.Product, line.Category)
	if err != nil {
		return err
	}

	currency := line.Currency
	if currency == "" {
		currency = imp.currency
	}
	price, err := money.New(line.Price, currency)
	if err != nil {
		imp.invalid++
		return nil
	}

	name := line.Name
	if name == "" {
		name = line.Code
	}
	trackStock := true
	if line.TrackStock != nil {
		trackStock = *line.TrackStock
	}

	sku := &catalog.Sku{
		ID:          uuid.New().String(),
		Code:        line.Code,
		Name:        name,
		Description: line.Description,
		ProductID:   productID,
		ProductName: line.Product,
		Price:       price,
		Stock:       line.Stock,
		TrackStock:  trackStock,
		Active:      true,
	}
	if err := imp.repo.CreateSku(ctx, sku); err != nil {
		return errors.Wrapf(err, "create sku %s", line.Code)
	}
	imp.imported++
	return nil
}

func (imp *importer) ensureProduct(ctx context.Context, name, category string) (string, error) {
	imp.mu.Lock()
	id, ok := imp.products[name]
	imp.mu.Unlock()
	if ok {
		return id, nil
	}

	p := &catalog.Product{
		ID:       uuid.New().String(),
		Name:     name,
		Category: category,
		Active:   true,
	}
	if err := imp.repo.CreateProduct(ctx, p); err != nil {
		return "", errors.Wrapf(err, "create product %q", name)
	}

	imp.mu.Lock()
	imp.products[name] = p.ID
	imp.mu.Unlock()
	return p.ID, nil
}

func (imp *importer) testAndAdd(code string) bool {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.seen.TestAndAddString(code)
}
