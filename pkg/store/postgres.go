// Package store persists call side effects: booked appointments and
// call summaries.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Hamon-Elyot/testcall/pkg/call"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config configures the Postgres sink.
type Config struct {
	DSN string

	MaxConns int32
	MinConns int32
}

// Postgres records appointments and summaries in Postgres. Callers
// treat both operations as fire-and-forget; errors are returned for
// logging only and never retried here.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres runs pending migrations and opens the connection pool.
func NewPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := migrate(ctx, cfg.DSN); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	} else {
		poolCfg.MinConns = 2
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Postgres{pool: pool, logger: logger}, nil
}

func migrate(ctx context.Context, dsn string) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer db.Close()
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// RecordAppointment inserts one appointment row.
func (s *Postgres) RecordAppointment(ctx context.Context, appt call.Appointment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO appointments (name, membership_number, appointment_type, date, time, phone, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		appt.Name, appt.MembershipNumber, appt.AppointmentType,
		appt.Date, appt.Time, appt.Phone, appt.Email)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	s.logger.Info("appointment recorded", "name", appt.Name, "type", appt.AppointmentType)
	return nil
}

// RecordSummary inserts one call summary row.
func (s *Postgres) RecordSummary(ctx context.Context, callID, summary string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO call_summaries (call_id, summary)
		VALUES ($1, $2)`,
		callID, summary)
	if err != nil {
		return fmt.Errorf("insert call summary: %w", err)
	}
	s.logger.Info("call summary recorded", "call_id", callID)
	return nil
}

// Close releases the pool.
func (s *Postgres) Close() {
	s.pool.Close()
}
