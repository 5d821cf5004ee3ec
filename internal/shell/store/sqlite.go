package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/topoplan/internal/core/domain"
	"github.com/artpar/topoplan/internal/core/topology"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeFormat is fixed-width so lexical order matches time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens the database at dsn and runs migrations.
// Use ":memory:" for an in-process database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// A pooled :memory: database would give every connection its own schema.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSubmission(ctx context.Context, sub *domain.Submission) error {
	return createSubmission(ctx, s.db, sub)
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	return getSubmission(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateSubmission(ctx context.Context, sub *domain.Submission) error {
	return updateSubmission(ctx, s.db, sub)
}

func (s *SQLiteStore) DeleteSubmission(ctx context.Context, id string) error {
	return deleteSubmission(ctx, s.db, id)
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context, opts ListOptions) ([]domain.Submission, error) {
	return listSubmissions(ctx, s.db, opts)
}

func (s *SQLiteStore) CountSubmissions(ctx context.Context, status domain.ProvisioningState) (int, error) {
	return countSubmissions(ctx, s.db, status)
}

func (s *SQLiteStore) ListSubmissionsByStatus(ctx context.Context, statuses ...domain.ProvisioningState) ([]domain.Submission, error) {
	return listSubmissionsByStatus(ctx, s.db, statuses)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	if err := fn(&txSQLiteStore{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}
	return nil
}

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateSubmission(ctx context.Context, sub *domain.Submission) error {
	return createSubmission(ctx, s.tx, sub)
}

func (s *txSQLiteStore) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	return getSubmission(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateSubmission(ctx context.Context, sub *domain.Submission) error {
	return updateSubmission(ctx, s.tx, sub)
}

func (s *txSQLiteStore) DeleteSubmission(ctx context.Context, id string) error {
	return deleteSubmission(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListSubmissions(ctx context.Context, opts ListOptions) ([]domain.Submission, error) {
	return listSubmissions(ctx, s.tx, opts)
}

func (s *txSQLiteStore) CountSubmissions(ctx context.Context, status domain.ProvisioningState) (int, error) {
	return countSubmissions(ctx, s.tx, status)
}

func (s *txSQLiteStore) ListSubmissionsByStatus(ctx context.Context, statuses ...domain.ProvisioningState) ([]domain.Submission, error) {
	return listSubmissionsByStatus(ctx, s.tx, statuses)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

// submissionRow represents a submission row in the database.
type submissionRow struct {
	ID           string  `db:"id"`
	Name         string  `db:"name"`
	PlanOrder    string  `db:"plan_order"`
	Warnings     string  `db:"warnings"`
	Status       string  `db:"status"`
	Progress     int     `db:"progress"`
	ErrorMessage string  `db:"error_message"`
	CreatedAt    string  `db:"created_at"`
	UpdatedAt    string  `db:"updated_at"`
	StartedAt    *string `db:"started_at"`
	FinishedAt   *string `db:"finished_at"`
}

func submissionToRow(op string, sub *domain.Submission) (map[string]any, error) {
	orderJSON, err := json.Marshal(sub.Order)
	if err != nil {
		return nil, NewStoreError(op, "submission", sub.ID, "failed to serialize order", ErrInvalidData)
	}
	warnings := sub.Warnings
	if warnings == nil {
		warnings = []topology.Warning{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return nil, NewStoreError(op, "submission", sub.ID, "failed to serialize warnings", ErrInvalidData)
	}

	return map[string]any{
		"id":            sub.ID,
		"name":          sub.Name,
		"plan_order":    string(orderJSON),
		"warnings":      string(warningsJSON),
		"status":        string(sub.Status),
		"progress":      sub.Progress,
		"error_message": sub.ErrorMessage,
		"created_at":    sub.CreatedAt.UTC().Format(timeFormat),
		"updated_at":    sub.UpdatedAt.UTC().Format(timeFormat),
		"started_at":    formatOptional(sub.StartedAt),
		"finished_at":   formatOptional(sub.FinishedAt),
	}, nil
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeFormat)
	return &s
}

func parseOptional(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(timeFormat, *s)
	if err != nil {
		return nil
	}
	return &t
}

func createSubmission(ctx context.Context, exec executor, sub *domain.Submission) error {
	row, err := submissionToRow("CreateSubmission", sub)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO submissions (
			id, name, plan_order, warnings, status, progress, error_message,
			created_at, updated_at, started_at, finished_at
		) VALUES (
			:id, :name, :plan_order, :warnings, :status, :progress, :error_message,
			:created_at, :updated_at, :started_at, :finished_at
		)`

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: submissions.id") {
			return NewStoreError("CreateSubmission", "submission", sub.ID, "submission with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateSubmission", "submission", sub.ID, err.Error(), err)
	}
	return nil
}

func getSubmission(ctx context.Context, exec executor, id string) (*domain.Submission, error) {
	var row submissionRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM submissions WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetSubmission", "submission", id, "submission not found", ErrNotFound)
		}
		return nil, NewStoreError("GetSubmission", "submission", id, err.Error(), err)
	}
	return rowToSubmission(&row)
}

func updateSubmission(ctx context.Context, exec executor, sub *domain.Submission) error {
	row, err := submissionToRow("UpdateSubmission", sub)
	if err != nil {
		return err
	}

	query := `
		UPDATE submissions SET
			name = :name,
			plan_order = :plan_order,
			warnings = :warnings,
			status = :status,
			progress = :progress,
			error_message = :error_message,
			updated_at = :updated_at,
			started_at = :started_at,
			finished_at = :finished_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateSubmission", "submission", sub.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateSubmission", "submission", sub.ID, "submission not found", ErrNotFound)
	}
	return nil
}

func deleteSubmission(ctx context.Context, exec executor, id string) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return NewStoreError("DeleteSubmission", "submission", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteSubmission", "submission", id, "submission not found", ErrNotFound)
	}
	return nil
}

func listSubmissions(ctx context.Context, exec executor, opts ListOptions) ([]domain.Submission, error) {
	opts = opts.Normalize()

	var rows []submissionRow
	var err error
	if opts.Status != "" {
		if !opts.Status.Valid() {
			return nil, NewStoreError("ListSubmissions", "submission", "", fmt.Sprintf("unknown status %q", opts.Status), ErrInvalidStatus)
		}
		err = exec.SelectContext(ctx, &rows,
			`SELECT * FROM submissions WHERE status = ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
			string(opts.Status), opts.Limit, opts.Offset)
	} else {
		err = exec.SelectContext(ctx, &rows,
			`SELECT * FROM submissions ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
			opts.Limit, opts.Offset)
	}
	if err != nil {
		return nil, NewStoreError("ListSubmissions", "submission", "", err.Error(), err)
	}

	return rowsToSubmissions(rows)
}

func countSubmissions(ctx context.Context, exec executor, status domain.ProvisioningState) (int, error) {
	var count int
	var err error
	if status != "" {
		if !status.Valid() {
			return 0, NewStoreError("CountSubmissions", "submission", "", fmt.Sprintf("unknown status %q", status), ErrInvalidStatus)
		}
		err = exec.GetContext(ctx, &count, `SELECT COUNT(*) FROM submissions WHERE status = ?`, string(status))
	} else {
		err = exec.GetContext(ctx, &count, `SELECT COUNT(*) FROM submissions`)
	}
	if err != nil {
		return 0, NewStoreError("CountSubmissions", "submission", "", err.Error(), err)
	}
	return count, nil
}

func listSubmissionsByStatus(ctx context.Context, exec executor, statuses []domain.ProvisioningState) ([]domain.Submission, error) {
	if len(statuses) == 0 {
		return []domain.Submission{}, nil
	}

	args := make([]any, 0, len(statuses))
	for _, st := range statuses {
		if !st.Valid() {
			return nil, NewStoreError("ListSubmissionsByStatus", "submission", "", fmt.Sprintf("unknown status %q", st), ErrInvalidStatus)
		}
		args = append(args, string(st))
	}

	query, args, err := sqlx.In(`SELECT * FROM submissions WHERE status IN (?) ORDER BY created_at ASC, id`, args)
	if err != nil {
		return nil, NewStoreError("ListSubmissionsByStatus", "submission", "", err.Error(), err)
	}

	var rows []submissionRow
	if err := exec.SelectContext(ctx, &rows, exec.Rebind(query), args...); err != nil {
		return nil, NewStoreError("ListSubmissionsByStatus", "submission", "", err.Error(), err)
	}

	return rowsToSubmissions(rows)
}

func rowsToSubmissions(rows []submissionRow) ([]domain.Submission, error) {
	subs := make([]domain.Submission, 0, len(rows))
	for _, row := range rows {
		sub, err := rowToSubmission(&row)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, nil
}

// rowToSubmission converts a database row to a domain.Submission.
func rowToSubmission(row *submissionRow) (*domain.Submission, error) {
	createdAt, _ := time.Parse(timeFormat, row.CreatedAt)
	updatedAt, _ := time.Parse(timeFormat, row.UpdatedAt)

	var order []string
	if err := json.Unmarshal([]byte(row.PlanOrder), &order); err != nil {
		return nil, NewStoreError("rowToSubmission", "submission", row.ID, "failed to parse order", ErrInvalidData)
	}

	warnings := []topology.Warning{}
	if row.Warnings != "" {
		if err := json.Unmarshal([]byte(row.Warnings), &warnings); err != nil {
			return nil, NewStoreError("rowToSubmission", "submission", row.ID, "failed to parse warnings", ErrInvalidData)
		}
	}

	return &domain.Submission{
		ID:           row.ID,
		Name:         row.Name,
		Order:        order,
		Warnings:     warnings,
		Status:       domain.ProvisioningState(row.Status),
		Progress:     row.Progress,
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		StartedAt:    parseOptional(row.StartedAt),
		FinishedAt:   parseOptional(row.FinishedAt),
	}, nil
}
