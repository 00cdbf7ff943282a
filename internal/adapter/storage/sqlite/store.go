package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"

	"github.com/librasign/signcheck/internal/domain"
	"github.com/librasign/signcheck/internal/port"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA foreign_keys = ON",
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

func NewStore(dataDir string) (*Store, error) {
	registerHook()

	dbPath := filepath.Join(dataDir, "signcheck.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite (WAL allows concurrent reads but only one writer)
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Create(ctx context.Context, job *domain.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, owner_id, expected_action, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.OwnerID, job.ExpectedAction, string(job.Status), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, owner_id, expected_action, status, predicted_action,
		       confidence, is_match, error_message, created_at, updated_at
		FROM jobs WHERE job_id = ?`, id)

	var (
		job             domain.Job
		status          string
		predictedAction string
		confidence      float64
		isMatch         bool
	)
	err := row.Scan(
		&job.ID, &job.OwnerID, &job.ExpectedAction, &status, &predictedAction,
		&confidence, &isMatch, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	job.Status = domain.JobStatus(status)
	if job.Status == domain.JobStatusCompleted {
		job.Result = &domain.Result{
			PredictedAction: predictedAction,
			Confidence:      confidence,
			IsMatch:         isMatch,
			ExpectedAction:  job.ExpectedAction,
		}
	}
	return &job, nil
}

func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, updated_at = ?
		WHERE job_id = ? AND status = ?`,
		string(domain.JobStatusProcessing), time.Now().UTC(), id, string(domain.JobStatusPending),
	)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return nil
}

// Complete writes the terminal result. The conditional WHERE makes the write
// a compare-and-set: a job already in a terminal state is left untouched and
// false is returned.
func (s *Store) Complete(ctx context.Context, id string, result domain.Result) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, predicted_action = ?, confidence = ?, is_match = ?, updated_at = ?
		WHERE job_id = ? AND status IN (?, ?)`,
		string(domain.JobStatusCompleted), result.PredictedAction, result.Confidence, result.IsMatch,
		time.Now().UTC(), id, string(domain.JobStatusPending), string(domain.JobStatusProcessing),
	)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Fail(ctx context.Context, id string, reason string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error_message = ?, updated_at = ?
		WHERE job_id = ? AND status IN (?, ?)`,
		string(domain.JobStatusFailed), reason, time.Now().UTC(),
		id, string(domain.JobStatusPending), string(domain.JobStatusProcessing),
	)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	return n > 0, nil
}

var _ port.JobStore = (*Store)(nil)
