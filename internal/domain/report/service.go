package report

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Service computes sales reports.
type Service struct {
	repo   Repository
	tracer trace.Tracer
}

// NewService creates a report Service. A nil tp falls back to the global
// tracer provider.
func NewService(repo Repository, tp trace.TracerProvider) *Service {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Service{
		repo:   repo,
		tracer: tp.Tracer("github.com/xenking/pos-backend/internal/domain/report"),
	}
}

// Summary returns total revenue and units sold for orders created within w.
// Both aggregates run concurrently; an empty window yields zeros.
func (s *Service) Summary(ctx context.Context, w Window) (*Summary, error) {
	ctx, span := s.tracer.Start(ctx, "report.Summary", trace.WithAttributes(windowAttrs(w)...))
	defer span.End()

	var (
		revenue  decimal.Decimal
		quantity int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.repo.Revenue(gctx, w)
		if err != nil {
			return errors.Wrap(err, "revenue")
		}
		revenue = v
		return nil
	})
	g.Go(func() error {
		v, err := s.repo.SoldQuantity(gctx, w)
		if err != nil {
			return errors.Wrap(err, "sold quantity")
		}
		quantity = v
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &Summary{TotalRevenue: revenue, TotalSoldQuantity: quantity}, nil
}

// ProductSales returns per-product sales for items created within w.
func (s *Service) ProductSales(ctx context.Context, w Window) ([]ProductSales, error) {
	ctx, span := s.tracer.Start(ctx, "report.ProductSales", trace.WithAttributes(windowAttrs(w)...))
	defer span.End()

	rows, err := s.repo.ProductSales(ctx, w)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "product sales")
	}
	if rows == nil {
		rows = []ProductSales{}
	}
	span.SetAttributes(attribute.Int("report.rows", len(rows)))
	return rows, nil
}

func windowAttrs(w Window) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("report.start", w.Start.Format(DateLayout)),
		attribute.String("report.end", w.End.Format(DateLayout)),
	}
}
