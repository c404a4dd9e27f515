package salesimport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/pos-backend/internal/domain/order"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	maxLineSize   = 1 << 20
	progressEvery = 10_000
)

// Store is the order persistence the importer writes through.
type Store interface {
	Create(ctx context.Context, o *order.Order) error
	TransactionNumberExists(ctx context.Context, number string) (bool, error)
	EachTransactionNumber(ctx context.Context, fn func(number string)) error
}

// Stats summarises one import run.
type Stats struct {
	Lines      int
	Imported   int
	Duplicates int
	Invalid    int
}

// Option configures an Importer.
type Option func(*Importer)

// WithWorkers sets how many goroutines decode lines. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.workers = n
		}
	}
}

// WithLocation sets the zone for timestamps without an offset. Defaults to
// time.Local.
func WithLocation(loc *time.Location) Option {
	return func(im *Importer) {
		if loc != nil {
			im.loc = loc
		}
	}
}

// WithLogger sets the progress logger.
func WithLogger(lg *slog.Logger) Option {
	return func(im *Importer) {
		if lg != nil {
			im.lg = lg
		}
	}
}

// Importer writes exported orders that are not yet known. Known transaction
// numbers are tracked in a bloom filter; a filter hit is confirmed against the
// store, so false positives never drop an order.
type Importer struct {
	store   Store
	workers int
	loc     *time.Location
	lg      *slog.Logger
	seen    *bloom.BloomFilter
}

// New creates an Importer. Call Prime before the first Import.
func New(store Store, opts ...Option) *Importer {
	im := &Importer{
		store:   store,
		workers: runtime.GOMAXPROCS(0),
		loc:     time.Local,
		lg:      slog.Default(),
		seen:    bloom.NewWithEstimates(bloomCapacity, bloomFPR),
	}
	for _, o := range opts {
		o(im)
	}
	return im
}

// Prime loads every stored transaction number into the filter.
func (im *Importer) Prime(ctx context.Context) error {
	var n int
	if err := im.store.EachTransactionNumber(ctx, func(number string) {
		im.seen.AddString(number)
		n++
	}); err != nil {
		return errors.Wrap(err, "load transaction numbers")
	}
	im.lg.Info("known transaction numbers loaded", slog.Int("count", n))
	return nil
}

type rawLine struct {
	no   int
	data []byte
}

type decoded struct {
	no  int
	rec *Record
	err error
}

// Import reads NDJSON orders from r. Lines are decoded concurrently and
// written one at a time; invalid lines are logged and counted, not fatal.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats

	g, ctx := errgroup.WithContext(ctx)
	lines := make(chan rawLine, im.workers*4)
	results := make(chan decoded, im.workers*4)

	g.Go(func() error {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		no := 0
		for scanner.Scan() {
			no++
			data := scanner.Bytes()
			if len(bytes.TrimSpace(data)) == 0 {
				continue
			}
			select {
			case lines <- rawLine{no: no, data: append([]byte(nil), data...)}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrap(err, "scan")
		}
		return nil
	})

	decoders, dctx := errgroup.WithContext(ctx)
	for range im.workers {
		decoders.Go(func() error {
			for l := range lines {
				rec, err := decodeRecord(l.data, im.loc)
				select {
				case results <- decoded{no: l.no, rec: rec, err: err}:
				case <-dctx.Done():
					return dctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(results)
		return decoders.Wait()
	})

	g.Go(func() error {
		for res := range results {
			stats.Lines++
			if res.err != nil {
				stats.Invalid++
				im.lg.Warn("invalid line", slog.Int("line", res.no), slog.String("error", res.err.Error()))
				continue
			}
			imported, err := im.write(ctx, res.rec)
			if err != nil {
				return errors.Wrapf(err, "line %d", res.no)
			}
			if imported {
				stats.Imported++
			} else {
				stats.Duplicates++
			}
			if stats.Lines%progressEvery == 0 {
				im.lg.Info("import progress",
					slog.Int("lines", stats.Lines),
					slog.Int("imported", stats.Imported),
					slog.Int("duplicates", stats.Duplicates),
				)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (im *Importer) write(ctx context.Context, rec *Record) (bool, error) {
	if im.seen.TestString(rec.TransactionNumber) {
		exists, err := im.store.TransactionNumberExists(ctx, rec.TransactionNumber)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	err := im.store.Create(ctx, rec.toOrder())
	switch {
	case errors.Is(err, order.ErrDuplicateTransactionNumber):
		im.seen.AddString(rec.TransactionNumber)
		return false, nil
	case err != nil:
		return false, err
	}
	im.seen.AddString(rec.TransactionNumber)
	return true, nil
}

// ImportFile imports path, decompressing it when it ends in .gz.
func (im *Importer) ImportFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return Stats{}, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	stats, err := im.Import(ctx, r)
	if err != nil {
		return stats, errors.Wrapf(err, "import %s", path)
	}
	return stats, nil
}
