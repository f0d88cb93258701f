package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mvalente-dev/identity-hub/app/observability/metrics"
	"github.com/mvalente-dev/identity-hub/internal/types"
)

var _ Repository = (*PostgresRepository)(nil)

// DB is the subset of pgxpool.Pool the repository uses. pgxmock's pool
// implements it too, which keeps the repository testable without a database.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository defines the contract for user persistence. Email uniqueness is
// enforced by the database constraint; a violation surfaces as
// types.ErrConflict, never a generic error.
type Repository interface {
	CreateUser(ctx context.Context, params types.CreateUserParams) (*types.User, error)
	GetUserByID(ctx context.Context, id string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	UpdateUser(ctx context.Context, id string, params types.UpdateUserParams) (*types.User, error)
	DeleteUser(ctx context.Context, id string) error
	UpsertUser(ctx context.Context, params types.CreateUserParams) (*types.User, error)
}

type PostgresRepository struct {
	logger *slog.Logger
	db     DB
	m      *metrics.AppMetrics
}

func NewPostgresRepository(db DB, logger *slog.Logger) *PostgresRepository {
	metrics.InitAppMetrics()
	return &PostgresRepository{
		logger: logger,
		db:     db,
		m:      metrics.Get(),
	}
}

const userColumns = `id, email, password_hash, name, first_name, last_name, username,
       email_verified, phone_number, external_id, image_url, last_sign_in_at,
       created_at, updated_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var user types.User
	var passwordHash *string
	err := row.Scan(
		&user.ID,
		&user.Email,
		&passwordHash,
		&user.Name,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.EmailVerified,
		&user.PhoneNumber,
		&user.ExternalID,
		&user.ImageURL,
		&user.LastSignInAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	return &user, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateUser inserts a new user record. Returns types.ErrConflict when the
// email (or id) already exists.
func (r *PostgresRepository) CreateUser(ctx context.Context, params types.CreateUserParams) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateUser"), slog.String("userID", params.ID))

	query := `
        INSERT INTO users (id, email, password_hash, name, first_name, last_name, username,
                           email_verified, phone_number, external_id, image_url, last_sign_in_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING ` + userColumns

	start := time.Now()
	user, err := scanUser(r.db.QueryRow(ctx, query,
		params.ID, params.Email, nullIfEmpty(params.PasswordHash), params.Name,
		params.FirstName, params.LastName, params.Username, params.EmailVerified,
		params.PhoneNumber, params.ExternalID, params.ImageURL, params.LastSignInAt))
	r.m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			l.WarnContext(ctx, "Attempted to create user with duplicate email or id", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Duplicate user")
			return nil, fmt.Errorf("user with this email already exists: %w", types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating user: %w", err)
	}

	l.InfoContext(ctx, "User created")
	span.SetStatus(codes.Ok, "User created")
	return user, nil
}

// GetUserByID retrieves a user by id. Returns types.ErrNotFound if absent.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "GetUserByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", id),
	))
	defer span.End()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	start := time.Now()
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	r.m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, fmt.Errorf("user %s: %w", id, types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}

	span.SetStatus(codes.Ok, "User fetched")
	return user, nil
}

// GetUserByEmail retrieves a user by email. Returns types.ErrNotFound if absent.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "GetUserByEmail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, fmt.Errorf("user with email: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}

	span.SetStatus(codes.Ok, "User fetched")
	return user, nil
}

// UpdateUser applies a partial update. Only non-nil params are written; the
// record id is immutable. Returns types.ErrNotFound when no row matches.
func (r *PostgresRepository) UpdateUser(ctx context.Context, id string, params types.UpdateUserParams) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "UpdateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", id),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpdateUser"), slog.String("userID", id))

	var setClauses []string
	var args []interface{}
	argID := 1

	addClause := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argID))
		args = append(args, value)
		argID++
	}

	if params.Email != nil {
		addClause("email", *params.Email)
	}
	if params.Name != nil {
		addClause("name", *params.Name)
	}
	if params.FirstName != nil {
		addClause("first_name", *params.FirstName)
	}
	if params.LastName != nil {
		addClause("last_name", *params.LastName)
	}
	if params.Username != nil {
		addClause("username", *params.Username)
	}
	if params.EmailVerified != nil {
		addClause("email_verified", *params.EmailVerified)
	}
	if params.PhoneNumber != nil {
		addClause("phone_number", *params.PhoneNumber)
	}
	if params.ExternalID != nil {
		addClause("external_id", *params.ExternalID)
	}
	if params.ImageURL != nil {
		addClause("image_url", *params.ImageURL)
	}
	if params.LastSignInAt != nil {
		addClause("last_sign_in_at", *params.LastSignInAt)
	}

	if len(setClauses) == 0 {
		return r.GetUserByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = now()")
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(setClauses, ", "), argID, userColumns)
	args = append(args, id)

	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, fmt.Errorf("user %s: %w", id, types.ErrNotFound)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			l.WarnContext(ctx, "Update would violate email uniqueness", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Duplicate email")
			return nil, fmt.Errorf("user with this email already exists: %w", types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to update user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, fmt.Errorf("database error updating user: %w", err)
	}

	l.InfoContext(ctx, "User updated")
	span.SetStatus(codes.Ok, "User updated")
	return user, nil
}

// DeleteUser removes a user record. Returns types.ErrNotFound when the row is
// already absent; callers that need idempotent deletes swallow that sentinel.
func (r *PostgresRepository) DeleteUser(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "DeleteUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", id),
	))
	defer span.End()

	tag, err := r.db.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "User not found")
		return fmt.Errorf("user %s: %w", id, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "User deleted")
	return nil
}

// UpsertUser inserts or updates a record keyed by id. Used by the webhook
// reconciler, where the id comes from the identity provider and an event may
// be redelivered or arrive after the record already exists.
func (r *PostgresRepository) UpsertUser(ctx context.Context, params types.CreateUserParams) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "UpsertUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", params.ID),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpsertUser"), slog.String("userID", params.ID))

	query := `
        INSERT INTO users (id, email, password_hash, name, first_name, last_name, username,
                           email_verified, phone_number, external_id, image_url, last_sign_in_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (id) DO UPDATE SET
            email           = EXCLUDED.email,
            name            = EXCLUDED.name,
            first_name      = EXCLUDED.first_name,
            last_name       = EXCLUDED.last_name,
            username        = EXCLUDED.username,
            email_verified  = EXCLUDED.email_verified,
            phone_number    = EXCLUDED.phone_number,
            external_id     = EXCLUDED.external_id,
            image_url       = EXCLUDED.image_url,
            last_sign_in_at = EXCLUDED.last_sign_in_at,
            updated_at      = now()
        RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query,
		params.ID, params.Email, nullIfEmpty(params.PasswordHash), params.Name,
		params.FirstName, params.LastName, params.Username, params.EmailVerified,
		params.PhoneNumber, params.ExternalID, params.ImageURL, params.LastSignInAt))
	if err != nil {
		// The email constraint can still fire when a different id holds the address.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			l.WarnContext(ctx, "Upsert would violate email uniqueness", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Duplicate email")
			return nil, fmt.Errorf("user with this email already exists: %w", types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to upsert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPSERT failed")
		return nil, fmt.Errorf("database error upserting user: %w", err)
	}

	l.InfoContext(ctx, "User upserted")
	span.SetStatus(codes.Ok, "User upserted")
	return user, nil
}
