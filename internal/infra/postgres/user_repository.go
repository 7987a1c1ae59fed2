package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/domain/user"
	"github.com/webscanio/api/pkg/pagination"
)

// userColumns is the list of columns to select for a user.
const userColumns = `id, email, name, status, password_hash,
	failed_login_attempts, locked_until, last_login_at, created_at, updated_at`

// UserRepository implements user.Repository using PostgreSQL.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create persists a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (
			id, email, name, status, password_hash,
			failed_login_attempts, locked_until, last_login_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		u.ID(),
		u.Email(),
		u.Name(),
		string(u.Status()),
		u.PasswordHash(),
		u.FailedLoginAttempts(),
		u.LockedUntil(),
		u.LastLoginAt(),
		u.CreatedAt(),
		u.UpdatedAt(),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return user.AlreadyExistsError()
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id shared.ID) (*user.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	u, err := r.scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.NotFoundError()
		}
		return nil, err
	}

	return u, nil
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)

	u, err := r.scanUser(r.db.QueryRowContext(ctx, query, strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.NotFoundError()
		}
		return nil, err
	}

	return u, nil
}

// List lists users with filtering and pagination.
func (r *UserRepository) List(ctx context.Context, filter user.Filter, page pagination.Pagination) (pagination.Result[*user.User], error) {
	var result pagination.Result[*user.User]

	whereClause, args := r.buildWhereClause(filter)

	countQuery := "SELECT COUNT(*) FROM users" + whereClause
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return result, fmt.Errorf("failed to count users: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM users%s%s LIMIT %d OFFSET %d`,
		userColumns, whereClause, orderByCreatedAtDesc, page.Limit, page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return result, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := r.scanUserFromRows(rows)
		if err != nil {
			return result, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("rows error: %w", err)
	}

	return pagination.NewResult(users, total, page), nil
}

// Update updates a user.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users SET
			email = $2,
			name = $3,
			status = $4,
			password_hash = $5,
			failed_login_attempts = $6,
			locked_until = $7,
			last_login_at = $8,
			updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		u.ID(),
		u.Email(),
		u.Name(),
		string(u.Status()),
		u.PasswordHash(),
		u.FailedLoginAttempts(),
		u.LockedUntil(),
		u.LastLoginAt(),
		u.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.AlreadyExistsError()
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return user.NotFoundError()
	}

	return nil
}

// Delete deletes a user by ID.
func (r *UserRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return user.NotFoundError()
	}

	return nil
}

// ExistsByEmail checks whether a user with the email exists.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)"
	if err := r.db.QueryRowContext(ctx, query, strings.ToLower(email)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

// Count counts users matching the filter.
func (r *UserRepository) Count(ctx context.Context, filter user.Filter) (int64, error) {
	whereClause, args := r.buildWhereClause(filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+whereClause, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, nil
}

// Helper methods

func (r *UserRepository) buildWhereClause(filter user.Filter) (string, []any) {
	var conditions []string
	var args []any
	argIndex := 1

	if filter.Email != nil {
		conditions = append(conditions, fmt.Sprintf("email = $%d", argIndex))
		args = append(args, strings.ToLower(*filter.Email))
		argIndex++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, string(*filter.Status))
		argIndex++
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// userScanFields collects raw column values before reconstruction.
type userScanFields struct {
	id                  shared.ID
	email               string
	name                string
	status              string
	passwordHash        string
	failedLoginAttempts int
	lockedUntil         sql.NullTime
	lastLoginAt         sql.NullTime
	createdAt           time.Time
	updatedAt           time.Time
}

func (r *UserRepository) scanUser(row *sql.Row) (*user.User, error) {
	var f userScanFields
	err := row.Scan(
		&f.id, &f.email, &f.name, &f.status, &f.passwordHash,
		&f.failedLoginAttempts, &f.lockedUntil, &f.lastLoginAt,
		&f.createdAt, &f.updatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r.reconstructUser(f), nil
}

func (r *UserRepository) scanUserFromRows(rows *sql.Rows) (*user.User, error) {
	var f userScanFields
	err := rows.Scan(
		&f.id, &f.email, &f.name, &f.status, &f.passwordHash,
		&f.failedLoginAttempts, &f.lockedUntil, &f.lastLoginAt,
		&f.createdAt, &f.updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return r.reconstructUser(f), nil
}

func (r *UserRepository) reconstructUser(f userScanFields) *user.User {
	status := user.Status(f.status)
	if !status.IsValid() {
		status = user.StatusActive
	}

	return user.Reconstitute(
		f.id,
		f.email,
		f.name,
		status,
		f.passwordHash,
		f.failedLoginAttempts,
		nullTimeValue(f.lockedUntil),
		nullTimeValue(f.lastLoginAt),
		f.createdAt,
		f.updatedAt,
	)
}

// Ensure implementation
var _ user.Repository = (*UserRepository)(nil)
