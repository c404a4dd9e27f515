package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/pos-backend/internal/salesimport"
	"github.com/xenking/pos-backend/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		timezone    string
		workers     int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&timezone, "timezone", "Local", "zone of export timestamps that carry no offset")
	flag.IntVar(&workers, "workers", 0, "decoder goroutines (default GOMAXPROCS)")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: sales-import [flags] export.ndjson[.gz]...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, timezone, workers, flag.Args()); err != nil {
		slog.Error("sales import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("sales import completed successfully")
}

func run(ctx context.Context, databaseURL, timezone string, workers int, files []string) error {
	loc := time.Local
	if timezone != "" && timezone != "Local" {
		var err error
		if loc, err = time.LoadLocation(timezone); err != nil {
			return errors.Wrapf(err, "load timezone %q", timezone)
		}
	}

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	im := salesimport.New(postgres.NewOrderRepository(pool),
		salesimport.WithWorkers(workers),
		salesimport.WithLocation(loc),
		salesimport.WithLogger(slog.Default()),
	)
	if err := im.Prime(ctx); err != nil {
		return err
	}

	var total salesimport.Stats
	for _, f := range files {
		slog.Info("importing", slog.String("file", f))

		stats, err := im.ImportFile(ctx, f)
		if err != nil {
			return err
		}
		slog.Info("file imported",
			slog.String("file", f),
			slog.Int("lines", stats.Lines),
			slog.Int("imported", stats.Imported),
			slog.Int("duplicates", stats.Duplicates),
			slog.Int("invalid", stats.Invalid),
		)
		total.Lines += stats.Lines
		total.Imported += stats.Imported
		total.Duplicates += stats.Duplicates
		total.Invalid += stats.Invalid
	}

	slog.Info("import totals",
		slog.Int("files", len(files)),
		slog.Int("lines", total.Lines),
		slog.Int("imported", total.Imported),
		slog.Int("duplicates", total.Duplicates),
		slog.Int("invalid", total.Invalid),
	)
	return nil
}
