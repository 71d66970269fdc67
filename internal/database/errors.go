package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrSeatTaken is returned when a confirmed booking already holds the seat
var ErrSeatTaken = errors.New("seat already booked for this bus and date")

// ErrDuplicate is returned when an insert collides with a unique key
var ErrDuplicate = errors.New("record already exists")

const uniqueViolation = "23505"

// isUniqueViolation recognises unique-constraint errors from both supported drivers
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
