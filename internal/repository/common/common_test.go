package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchInserter_Statement(t *testing.T) {
	bi := NewBatchInserter(nil, "INSERT INTO invoices (id, milestone_id)", 2, 10).
		OnConflict("ON CONFLICT (milestone_id) DO NOTHING")

	require.NoError(t, bi.Add(context.Background(), "a", "m1"))
	require.NoError(t, bi.Add(context.Background(), "b", "m2"))

	assert.Equal(t,
		"INSERT INTO invoices (id, milestone_id) VALUES ($1, $2), ($3, $4) ON CONFLICT (milestone_id) DO NOTHING",
		bi.statement())
	assert.Error(t, bi.Add(context.Background(), "only one"))
}

func TestPageRequest_Normalize(t *testing.T) {
	p := PageRequest{}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.PageSize)

	p = PageRequest{Page: 3, PageSize: 500}.Normalize()
	assert.Equal(t, MaxPageSize, p.PageSize)
	assert.Equal(t, 200, p.Offset())
}

func TestPG_BuildsPostgresPlaceholders(t *testing.T) {
	query, args, err := PG.From("agreements").
		Where(goqu.C("contractor_id").Eq("c1"), goqu.C("is_archived").IsFalse()).
		Prepared(true).ToSQL()
	require.NoError(t, err)

	assert.Contains(t, query, `"contractor_id" = $1`)
	assert.Equal(t, []interface{}{"c1"}, args)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
