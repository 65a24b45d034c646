// Package postgres implements the relational repositories on PostgreSQL
// through database/sql and the pgx stdlib driver.
//
// All lookups translate sql.ErrNoRows into a (nil, nil) return: absence of
// a row is a routine outcome for the callers, not a failure.
package postgres
