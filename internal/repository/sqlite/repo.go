package sqlite

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/tolkbridge/tolka/internal/db"
	"github.com/tolkbridge/tolka/pkg/repository"
)

// Repo implements the repository interfaces using the internal DB wrapper.
type Repo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure Repo implements the public interfaces.
var _ repository.JobStore = (*Repo)(nil)
var _ repository.UserDirectory = (*Repo)(nil)

func New(conn *db.DB, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repo{conn: conn, logger: logger}
}

// Timestamps are stored as unix seconds, UTC.

func ts(t time.Time) int64 {
	return t.UTC().Unix()
}

func fromTS(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}

func nullTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func scanNullTS(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromTS(v.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
