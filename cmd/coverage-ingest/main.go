// Command coverage-ingest builds the serviceable pincode set from courier
// coverage dumps. Each courier publishes a gzipped newline-delimited list of
// pincodes it reaches; a pincode is serviceable when at least two couriers
// cover it.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/alfoods/storefront/internal/storage/postgres"
)

const (
	bloomCapacity = 30_000_000
	bloomFPR      = 0.001
	numFiles      = 3
	progressEvery = 5_000_000
	pincodeLen    = 6
	writeBatch    = 1000
)

// fileResult holds candidate pincodes found in a single dump during pass 2.
type fileResult struct {
	candidates map[string]uint
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing courierN.gz coverage dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("coverage ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coverage ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("courier%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build one bloom filter per dump, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: keep pincodes covered by 2+ couriers.
	slog.Info("pass 2: finding serviceable pincodes")

	serviceable, err := findServiceablePincodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find serviceable pincodes")
	}

	slog.Info("serviceable pincodes found", slog.Int("count", len(serviceable)))

	if len(serviceable) == 0 {
		slog.Info("no serviceable pincodes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writePincodes(ctx, postgres.NewCoverageRepository(pool), serviceable); err != nil {
		return errors.Wrap(err, "write pincodes to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per dump file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(pincode string) {
			if !validPincode(pincode) {
				return
			}
			filter.AddString(pincode)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("file", idx+1),
					slog.Uint64("pincodes", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_pincodes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findServiceablePincodes re-streams each dump and checks pincodes against the
// OTHER dumps' bloom filters. A pincode is serviceable when 2 or more couriers
// cover it.
func findServiceablePincodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge coverage bitmasks from all dumps.
	merged := make(map[string]uint)
	for _, r := range results {
		for pincode, mask := range r.candidates {
			merged[pincode] |= mask
		}
	}

	var serviceable []string
	for pincode, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			serviceable = append(serviceable, pincode)
		}
	}

	return serviceable, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(pincode string) {
			if !validPincode(pincode) {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("pincodes", count),
				)
			}

			// Check whether another courier's filter also has this pincode.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(pincode) {
					candidates[pincode] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_pincodes", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// validPincode reports whether s is a 6-digit postal code.
func validPincode(s string) bool {
	if len(s) != pincodeLen {
		return false
	}
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// streamGzFile opens a gzip-compressed dump and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(pincode string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writePincodes inserts all serviceable pincodes in batches.
func writePincodes(ctx context.Context, repo *postgres.CoverageRepository, pincodes []string) error {
	slog.Info("writing pincodes to database", slog.Int("count", len(pincodes)))

	for start := 0; start < len(pincodes); start += writeBatch {
		end := min(start+writeBatch, len(pincodes))
		if err := repo.InsertBatch(ctx, pincodes[start:end]); err != nil {
			return errors.Wrapf(err, "insert batch at offset %d", start)
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(pincodes)))
	}

	total, err := repo.Count(ctx)
	if err != nil {
		return errors.Wrap(err, "count stored pincodes")
	}
	slog.Info("stored pincode set size", slog.Int64("total", total))

	return nil
}
