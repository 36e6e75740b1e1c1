package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/claim-approval/internal/application/port"
	"github.com/garyjia/claim-approval/internal/domain/entity"
	"github.com/garyjia/claim-approval/internal/infrastructure/persistence/sqlite"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// LecturerRepository implements port.LecturerRepository
type LecturerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLecturerRepository creates a new lecturer repository
func NewLecturerRepository(db *sql.DB, logger *zap.Logger) *LecturerRepository {
	return &LecturerRepository{
		db:     db,
		logger: logger,
	}
}

// CreateLecturer inserts a lecturer
func (r *LecturerRepository) CreateLecturer(ctx context.Context, lecturer *entity.Lecturer) error {
	if lecturer.CreatedAt.IsZero() {
		lecturer.CreatedAt = time.Now()
	}
	lecturer.CreatedAt = lecturer.CreatedAt.UTC()

	query := `INSERT INTO lecturers (name, email, created_at) VALUES (?, ?, ?)`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		lecturer.Name,
		lecturer.Email,
		lecturer.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("lecturer %q: %w", lecturer.Email, port.ErrDuplicate)
	}
	if err != nil {
		r.logger.Error("Failed to create lecturer", zap.String("email", lecturer.Email), zap.Error(err))
		return fmt.Errorf("failed to create lecturer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	lecturer.ID = id
	return nil
}

// FindLecturer retrieves a lecturer by ID
func (r *LecturerRepository) FindLecturer(ctx context.Context, id int64) (*entity.Lecturer, error) {
	query := `SELECT id, name, email, created_at FROM lecturers WHERE id = ?`

	lecturer, err := scanLecturer(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lecturer %d: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get lecturer", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get lecturer: %w", err)
	}
	return lecturer, nil
}

// FindLecturerByEmail retrieves a lecturer by email, ignoring case
func (r *LecturerRepository) FindLecturerByEmail(ctx context.Context, email string) (*entity.Lecturer, error) {
	query := `SELECT id, name, email, created_at FROM lecturers WHERE email = ? COLLATE NOCASE`

	lecturer, err := scanLecturer(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lecturer %q: %w", email, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get lecturer by email", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("failed to get lecturer: %w", err)
	}
	return lecturer, nil
}

// ListLecturers returns all lecturers ordered by name
func (r *LecturerRepository) ListLecturers(ctx context.Context) ([]*entity.Lecturer, error) {
	query := `SELECT id, name, email, created_at FROM lecturers ORDER BY name, id`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list lecturers", zap.Error(err))
		return nil, fmt.Errorf("failed to list lecturers: %w", err)
	}
	defer rows.Close()

	var lecturers []*entity.Lecturer
	for rows.Next() {
		lecturer, err := scanLecturer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lecturer: %w", err)
		}
		lecturers = append(lecturers, lecturer)
	}
	return lecturers, rows.Err()
}

func scanLecturer(row rowScanner) (*entity.Lecturer, error) {
	var l entity.Lecturer
	if err := row.Scan(&l.ID, &l.Name, &l.Email, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

var _ port.LecturerRepository = (*LecturerRepository)(nil)
