package repository

import (
	"database/sql"
	"errors"
	"fmt"
)

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// notFoundOr maps sql.ErrNoRows to notFound and wraps anything else with op.
func notFoundOr(err error, notFound error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return fmt.Errorf("%s %w", op, err)
}
