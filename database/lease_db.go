package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/camden-git/facealbums/config"
)

// ErrLeaseHeld is returned when another holder owns an unexpired lease
var ErrLeaseHeld = errors.New("lease is held by another holder")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

const leaseTableStmt = `
CREATE TABLE IF NOT EXISTS job_leases (
	lease_key TEXT PRIMARY KEY,
	holder TEXT NOT NULL,
	expires_at BIGINT NOT NULL
);
`

// EnsureLeaseTable creates the job_leases table if needed
func EnsureLeaseTable(db *sql.DB) error {
	if _, err := db.Exec(leaseTableStmt); err != nil {
		return fmt.Errorf("failed to create job_leases table: %w", err)
	}
	return nil
}

// LeaseStore grants time-bounded mutual exclusion tokens keyed by string.
// Expired leases can be taken over by a new holder.
type LeaseStore struct {
	DB      *sql.DB
	TTL     time.Duration
	builder sq.StatementBuilderType
	now     func() time.Time
}

func NewLeaseStore(db *sql.DB, driver string, ttl time.Duration) *LeaseStore {
	builder := psql
	if driver == config.DatabaseDriverPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &LeaseStore{DB: db, TTL: ttl, builder: builder, now: time.Now}
}

// Acquire takes the lease for key on behalf of holder. It returns
// ErrLeaseHeld when a different holder owns an unexpired lease.
func (s *LeaseStore) Acquire(key, holder string) error {
	now := s.now().Unix()
	expiresAt := s.now().Add(s.TTL).Unix()

	queryBuilder := s.builder.Insert("job_leases").
		Columns("lease_key", "holder", "expires_at").
		Values(key, holder, expiresAt).
		Suffix("ON CONFLICT(lease_key) DO UPDATE SET").
		Suffix("holder = excluded.holder,").
		Suffix("expires_at = excluded.expires_at").
		Suffix("WHERE job_leases.expires_at < ? OR job_leases.holder = ?", now, holder)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for Acquire: %w", err)
	}

	result, err := s.DB.Exec(sqlStr, args...)
	if err != nil {
		return fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for lease %s: %w", key, err)
	}
	if rows == 0 {
		return ErrLeaseHeld
	}
	log.Printf("database: lease %s acquired by %s until %d", key, holder, expiresAt)
	return nil
}

// Renew pushes the expiry of a lease still owned by holder
func (s *LeaseStore) Renew(key, holder string) error {
	queryBuilder := s.builder.Update("job_leases").
		Set("expires_at", s.now().Add(s.TTL).Unix()).
		Where(sq.Eq{"lease_key": key, "holder": holder})

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for Renew: %w", err)
	}
	result, err := s.DB.Exec(sqlStr, args...)
	if err != nil {
		return fmt.Errorf("failed to renew lease %s: %w", key, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrLeaseHeld
	}
	return nil
}

// Release drops the lease if holder still owns it
func (s *LeaseStore) Release(key, holder string) error {
	queryBuilder := s.builder.Delete("job_leases").
		Where(sq.Eq{"lease_key": key, "holder": holder})

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for Release: %w", err)
	}
	if _, err := s.DB.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", key, err)
	}
	log.Printf("database: lease %s released by %s", key, holder)
	return nil
}
