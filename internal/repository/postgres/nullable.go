package postgres

import (
	"database/sql"
	"errors"
)

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
