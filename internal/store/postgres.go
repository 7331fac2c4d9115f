// Package store persists the activity log in PostgreSQL.
package store

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgx used here.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS activity_log (
    id          UUID PRIMARY KEY,
    action      TEXT NOT NULL,
    severity    TEXT NOT NULL,
    session_id  TEXT,
    source      TEXT,
    detail      TEXT,
    rows_before INTEGER NOT NULL DEFAULT 0,
    rows_after  INTEGER NOT NULL DEFAULT 0,
    ip_address  INET,
    user_agent  TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS activity_log_created_at_idx ON activity_log (created_at DESC);
`

const insertActivity = `
INSERT INTO activity_log
    (id, action, severity, session_id, source, detail, rows_before, rows_after, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const selectRecent = `
SELECT id, action, severity, session_id, source, detail, rows_before, rows_after, ip_address, user_agent, created_at
FROM activity_log
ORDER BY created_at DESC
LIMIT $1`

// PostgresActivityLog implements core.ActivityLog on an activity_log table.
type PostgresActivityLog struct {
	db DBTX
}

var _ core.ActivityLog = (*PostgresActivityLog)(nil)

// NewPostgresActivityLog wraps db. Call Migrate before first use.
func NewPostgresActivityLog(db DBTX) *PostgresActivityLog {
	return &PostgresActivityLog{db: db}
}

// Migrate creates the table and index if they do not exist.
func (p *PostgresActivityLog) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate activity_log: %w", err)
	}
	return nil
}

// Record inserts one entry.
func (p *PostgresActivityLog) Record(ctx context.Context, e core.ActivityEntry) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("activity id %q: %w", e.ID, err)
	}
	_, err = p.db.Exec(ctx, insertActivity,
		pgtype.UUID{Bytes: id, Valid: true},
		string(e.Action),
		string(e.Severity),
		nullText(e.SessionID),
		nullText(e.Source),
		nullText(e.Detail),
		e.RowsBefore,
		e.RowsAfter,
		parseIP(e.IPAddress),
		nullText(e.UserAgent),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (p *PostgresActivityLog) Recent(ctx context.Context, limit int) ([]core.ActivityEntry, error) {
	if limit <= 0 {
		limit = core.DefaultActivityCapacity
	}

	rows, err := p.db.Query(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var entries []core.ActivityEntry
	for rows.Next() {
		e, err := scanActivityRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return entries, nil
}

// Purge deletes entries created before the cutoff.
func (p *PostgresActivityLog) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, "DELETE FROM activity_log WHERE created_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("purge activity: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanActivityRow(rows pgx.Rows) (core.ActivityEntry, error) {
	var (
		id         pgtype.UUID
		action     string
		severity   string
		sessionID  pgtype.Text
		source     pgtype.Text
		detail     pgtype.Text
		rowsBefore int32
		rowsAfter  int32
		ipAddress  *netip.Addr
		userAgent  pgtype.Text
		createdAt  pgtype.Timestamptz
	)

	err := rows.Scan(
		&id, &action, &severity, &sessionID, &source, &detail,
		&rowsBefore, &rowsAfter, &ipAddress, &userAgent, &createdAt,
	)
	if err != nil {
		return core.ActivityEntry{}, err
	}

	e := core.ActivityEntry{
		Action:     core.ActivityAction(action),
		Severity:   core.Severity(severity),
		SessionID:  sessionID.String,
		Source:     source.String,
		Detail:     detail.String,
		RowsBefore: int(rowsBefore),
		RowsAfter:  int(rowsAfter),
		UserAgent:  userAgent.String,
		CreatedAt:  createdAt.Time,
	}
	if id.Valid {
		e.ID = uuid.UUID(id.Bytes).String()
	}
	if ipAddress != nil {
		e.IPAddress = ipAddress.String()
	}
	return e, nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// parseIP returns nil for anything that is not an address so the column
// stays NULL instead of failing the insert.
func parseIP(s string) *netip.Addr {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil
	}
	return &addr
}
