package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-backend/internal/domain/auth"
	"github.com/xenking/pos-backend/internal/domain/product"
	"github.com/xenking/pos-backend/internal/storage/postgres"
)

type productJSON struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
}

type options struct {
	databaseURL   string
	productsFile  string
	adminName     string
	adminEmail    string
	adminPassword string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&opts.adminName, "admin-name", "Admin", "name of the seeded cashier account")
	flag.StringVar(&opts.adminEmail, "admin-email", "admin@example.com", "email of the seeded cashier account")
	flag.StringVar(&opts.adminPassword, "admin-password", "", "password of the seeded cashier account (or POS_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.adminPassword == "" {
		opts.adminPassword = os.Getenv("POS_SEED_ADMIN_PASSWORD")
	}
	if opts.adminPassword == "" {
		slog.Error("admin password is required: set --admin-password or POS_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedAdmin(ctx, postgres.NewAuthRepository(pool), opts); err != nil {
		return errors.Wrap(err, "seed admin")
	}

	if err := seedCatalog(ctx, postgres.NewProductRepository(pool), opts.productsFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	return nil
}

func seedAdmin(ctx context.Context, repo *postgres.AuthRepository, opts options) error {
	hash, err := auth.HashPassword(opts.adminPassword)
	if err != nil {
		return err
	}

	u := &auth.User{
		Name:         opts.adminName,
		Email:        opts.adminEmail,
		PasswordHash: hash,
		Role:         "admin",
	}
	if err := repo.UpsertUser(ctx, u); err != nil {
		return err
	}

	slog.Info("upserted admin", slog.Int64("id", u.ID), slog.String("email", u.Email))
	return nil
}

func seedCatalog(ctx context.Context, repo *postgres.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	categories := make(map[string]int64)
	var inserted int
	for _, p := range products {
		var categoryID *int64
		if p.Category != "" {
			id, ok := categories[p.Category]
			if !ok {
				if id, err = repo.EnsureCategory(ctx, p.Category, ""); err != nil {
					return errors.Wrapf(err, "ensure category %s", p.Category)
				}
				categories[p.Category] = id
			}
			categoryID = &id
		}

		row := &product.Product{
			CategoryID:  categoryID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Stock:       p.Stock,
			Image:       p.Image,
		}
		ok, err := repo.Insert(ctx, row)
		if err != nil {
			return err
		}
		if !ok {
			slog.Info("product exists, skipped", slog.String("name", p.Name))
			continue
		}
		inserted++
		slog.Info("inserted product", slog.Int64("id", row.ID), slog.String("name", p.Name))
	}

	slog.Info("catalog seeded",
		slog.Int("products", len(products)),
		slog.Int("inserted", inserted),
		slog.Int("categories", len(categories)),
	)
	return nil
}
