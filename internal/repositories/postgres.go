package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/skillswap/backend/internal/db"
	"github.com/skillswap/backend/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	role := user.Role
	if role == "" {
		role = models.RoleUser
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, display_name, role, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, user.ID, user.Email, user.Password, user.DisplayName, role, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByID fetches a user by id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "id", id)
}

// findOne selects the user whose column equals value. column is never user input.
func (r *PostgresUserRepository) findOne(ctx context.Context, column, value string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, display_name, role, created_at, updated_at
        FROM users
        WHERE `+column+` = $1
    `, value)

	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.DisplayName, &user.Role, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}

	return user, nil
}

// PostgresProfileRepository provides PostgreSQL-backed persistence for profiles.
type PostgresProfileRepository struct {
	pool db.Pool
}

// NewPostgresProfileRepository constructs a profile repository backed by PostgreSQL.
func NewPostgresProfileRepository(pool db.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

const profileColumns = `user_id, name, email, location, skills_offered, skills_wanted, availability, is_public, profile_picture, created_at, updated_at`

func scanProfile(row pgx.Row) (models.Profile, error) {
	var (
		p       models.Profile
		picture sql.NullString
	)
	if err := row.Scan(&p.UserID, &p.Name, &p.Email, &p.Location, &p.SkillsOffered, &p.SkillsWanted, &p.Availability, &p.IsPublic, &picture, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.Profile{}, err
	}
	p.ProfilePicture = picture.String
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// Get loads the profile owned by userID.
func (r *PostgresProfileRepository) Get(ctx context.Context, userID string) (models.Profile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Profile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	profile, err := scanProfile(conn.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	return profile, nil
}

// List returns profiles matching filter ordered by case-folded name.
func (r *PostgresProfileRepository) List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+profileColumns+`
        FROM profiles
        WHERE ($1::BOOL = FALSE OR is_public)
          AND ($2::TEXT = '' OR user_id <> $2::TEXT)
        ORDER BY lower(name), user_id
    `, filter.PublicOnly, filter.ExcludeUserID)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return profiles, nil
}

// Upsert inserts or updates the profile keyed by user id.
func (r *PostgresProfileRepository) Upsert(ctx context.Context, profile models.Profile) (models.Profile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Profile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	picture := sql.NullString{String: profile.ProfilePicture, Valid: profile.ProfilePicture != ""}
	saved, err := scanProfile(conn.QueryRow(ctx, `
        INSERT INTO profiles (`+profileColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
        ON CONFLICT (user_id) DO UPDATE SET
            name = EXCLUDED.name,
            email = EXCLUDED.email,
            location = EXCLUDED.location,
            skills_offered = EXCLUDED.skills_offered,
            skills_wanted = EXCLUDED.skills_wanted,
            availability = EXCLUDED.availability,
            is_public = EXCLUDED.is_public,
            profile_picture = EXCLUDED.profile_picture,
            updated_at = EXCLUDED.updated_at
        RETURNING `+profileColumns,
		profile.UserID, profile.Name, profile.Email, profile.Location,
		nonNil(profile.SkillsOffered), nonNil(profile.SkillsWanted), nonNil(profile.Availability),
		profile.IsPublic, picture, profile.UpdatedAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}

	return saved, nil
}

// SetPicture records the URI of the user's uploaded picture.
func (r *PostgresProfileRepository) SetPicture(ctx context.Context, userID, uri string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE profiles
        SET profile_picture = $2, updated_at = $3
        WHERE user_id = $1
    `, userID, uri, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update profile picture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCascade removes the profile and the user's swap requests in one transaction.
func (r *PostgresProfileRepository) DeleteCascade(ctx context.Context, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete profile: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
        DELETE FROM swap_requests
        WHERE from_user_id = $1 OR to_user_id = $1
    `, userID); err != nil {
		return fmt.Errorf("delete user swap requests: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete profile: %w", err)
	}
	return nil
}

// Stats counts profiles, public profiles and swap requests.
func (r *PostgresProfileRepository) Stats(ctx context.Context) (models.Stats, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Stats{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var stats models.Stats
	if err := conn.QueryRow(ctx, `
        SELECT
            (SELECT count(*) FROM profiles),
            (SELECT count(*) FROM swap_requests),
            (SELECT count(*) FROM profiles WHERE is_public)
    `).Scan(&stats.TotalUsers, &stats.TotalRequests, &stats.PublicProfiles); err != nil {
		return models.Stats{}, fmt.Errorf("select stats: %w", err)
	}
	return stats, nil
}

// PostgresRequestRepository provides PostgreSQL-backed persistence for swap requests.
type PostgresRequestRepository struct {
	pool db.Pool
}

// NewPostgresRequestRepository constructs a swap request repository backed by PostgreSQL.
func NewPostgresRequestRepository(pool db.Pool) *PostgresRequestRepository {
	return &PostgresRequestRepository{pool: pool}
}

const requestColumns = `id, from_user_id, from_user_name, to_user_id, to_user_name, message, status, created_at, responded_at`

func scanRequest(row pgx.Row) (models.SwapRequest, error) {
	var (
		req         models.SwapRequest
		respondedAt sql.NullTime
	)
	if err := row.Scan(&req.ID, &req.FromUserID, &req.FromUserName, &req.ToUserID, &req.ToUserName, &req.Message, &req.Status, &req.CreatedAt, &respondedAt); err != nil {
		return models.SwapRequest{}, err
	}
	req.CreatedAt = req.CreatedAt.UTC()
	if respondedAt.Valid {
		t := respondedAt.Time.UTC()
		req.RespondedAt = &t
	}
	return req, nil
}

// Create persists a new swap request.
func (r *PostgresRequestRepository) Create(ctx context.Context, request models.SwapRequest) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO swap_requests (`+requestColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, request.ID, request.FromUserID, request.FromUserName, request.ToUserID, request.ToUserName,
		request.Message, request.Status, request.CreatedAt, request.RespondedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return ErrConflict
			case pgForeignKeyViolation:
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert swap request: %w", err)
	}

	return nil
}

// Get loads a swap request by id.
func (r *PostgresRequestRepository) Get(ctx context.Context, id string) (models.SwapRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.SwapRequest{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	req, err := scanRequest(conn.QueryRow(ctx, `SELECT `+requestColumns+` FROM swap_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SwapRequest{}, ErrNotFound
		}
		return models.SwapRequest{}, fmt.Errorf("select swap request: %w", err)
	}
	return req, nil
}

// ListForUser returns swap requests where the user is the sender or recipient.
func (r *PostgresRequestRepository) ListForUser(ctx context.Context, userID string) ([]models.SwapRequest, error) {
	return r.list(ctx, `
        SELECT `+requestColumns+`
        FROM swap_requests
        WHERE from_user_id = $1 OR to_user_id = $1
        ORDER BY created_at DESC, id DESC
    `, userID)
}

// ListAll returns every swap request.
func (r *PostgresRequestRepository) ListAll(ctx context.Context) ([]models.SwapRequest, error) {
	return r.list(ctx, `
        SELECT `+requestColumns+`
        FROM swap_requests
        ORDER BY created_at DESC, id DESC
    `)
}

func (r *PostgresRequestRepository) list(ctx context.Context, query string, args ...any) ([]models.SwapRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query swap requests: %w", err)
	}
	defer rows.Close()

	var requests []models.SwapRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swap request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap requests: %w", err)
	}

	return requests, nil
}

// TransitionStatus updates the status only while the request still holds from.
func (r *PostgresRequestRepository) TransitionStatus(ctx context.Context, id string, from, to models.RequestStatus, at time.Time) (models.SwapRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.SwapRequest{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	req, err := scanRequest(conn.QueryRow(ctx, `
        UPDATE swap_requests
        SET status = $3, responded_at = $4
        WHERE id = $1 AND status = $2
        RETURNING `+requestColumns,
		id, from, to, at.UTC()))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.SwapRequest{}, fmt.Errorf("update swap request status: %w", err)
	}

	return models.SwapRequest{}, r.missOrStale(ctx, conn, id)
}

// DeleteIfStatus removes the request only while it holds status.
func (r *PostgresRequestRepository) DeleteIfStatus(ctx context.Context, id string, status models.RequestStatus) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM swap_requests WHERE id = $1 AND status = $2`, id, status)
	if err != nil {
		return fmt.Errorf("delete swap request: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	return r.missOrStale(ctx, conn, id)
}

// Delete removes the request regardless of status.
func (r *PostgresRequestRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM swap_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete swap request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// missOrStale distinguishes a vanished request from one whose status moved on.
func (r *PostgresRequestRepository) missOrStale(ctx context.Context, q querier, id string) error {
	var status string
	err := q.QueryRow(ctx, `SELECT status FROM swap_requests WHERE id = $1`, id).Scan(&status)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("select swap request status: %w", err)
	default:
		return ErrStaleState
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ ProfileRepository = (*PostgresProfileRepository)(nil)
var _ RequestRepository = (*PostgresRequestRepository)(nil)
