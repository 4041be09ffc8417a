package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrDuplicateKey          = errors.New("duplicate key")
	ErrCurrentVersionChanged = errors.New("current version changed concurrently")
	ErrLoadRunNotFound       = errors.New("load run not found")
)

// isDuplicateKeyError распознает нарушение уникальности в PostgreSQL и SQLite
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
