package common

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"
)

// PG is the query builder used for filtered list queries.
var PG = goqu.Dialect("postgres")

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest is a 1-based page-number request.
type PageRequest struct {
	Page     int
	PageSize int
}

// Normalize clamps the request to the allowed range.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the row offset of the page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// SelectPage runs ds with the page's LIMIT/OFFSET and a matching COUNT(*).
func SelectPage[T any](ctx context.Context, db *sqlx.DB, ds *goqu.SelectDataset, page PageRequest) ([]T, int, error) {
	page = page.Normalize()

	countSQL, countArgs, err := PG.From(ds.ClearOrder().As("q")).Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	query, args, err := ds.Limit(uint(page.PageSize)).Offset(uint(page.Offset())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build select query: %w", err)
	}
	items := make([]T, 0, page.PageSize)
	if err := db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("select page: %w", err)
	}

	return items, total, nil
}
