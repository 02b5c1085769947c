package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrKeyNotFound      = errors.New("api key not found")
	ErrEventNotFound    = errors.New("event not found")
	ErrDuplicateEvent   = errors.New("event already exists")
	ErrEndpointNotFound = errors.New("endpoint not found")
	// ErrEndpointConflict means another active endpoint of the tenant has the same URL.
	ErrEndpointConflict = errors.New("endpoint url already registered")
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
