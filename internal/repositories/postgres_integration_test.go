package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillswap/backend/internal/auth"
	"github.com/skillswap/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	if os.Getenv("SKILLSWAP_SKIP_DB_TESTS") != "" {
		os.Exit(m.Run())
	}

	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("database tests disabled")
	}
}

func TestPostgresUserRepository_CreateAndFind(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	user := models.User{
		ID:          uuid.NewString(),
		Email:       "alice@example.com",
		Password:    "secret-hash",
		DisplayName: "alice",
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := user
	dup.ID = uuid.NewString()
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate email, got %v", err)
	}

	fetched, err := repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if fetched.ID != user.ID || fetched.Password != user.Password || fetched.DisplayName != "alice" {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}
	if fetched.Role != models.RoleUser {
		t.Fatalf("expected default role user, got %q", fetched.Role)
	}

	if _, err := repo.FindByEmail(ctx, "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	byID, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Email != user.Email {
		t.Fatalf("unexpected user fetched by id: %+v", byID)
	}
	if _, err := repo.FindByID(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound by id, got %v", err)
	}
}

func TestPostgresProfileRepository_UpsertListAndCascade(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	profiles := NewPostgresProfileRepository(testPool)
	requests := NewPostgresRequestRepository(testPool)

	ada := createTestUser(t, users, "ada@example.com")
	bob := createTestUser(t, users, "bob@example.com")
	cy := createTestUser(t, users, "cy@example.com")

	now := time.Now().UTC().Truncate(time.Millisecond)
	for _, p := range []models.Profile{
		{UserID: ada.ID, Name: "ada", SkillsOffered: []string{"Go"}, Availability: []string{"Weekday Evenings"}, IsPublic: true, UpdatedAt: now},
		{UserID: bob.ID, Name: "Bob", SkillsWanted: []string{"Go"}, IsPublic: true, UpdatedAt: now},
		{UserID: cy.ID, Name: "Cy", IsPublic: false, UpdatedAt: now},
	} {
		if _, err := profiles.Upsert(ctx, p); err != nil {
			t.Fatalf("upsert profile %s: %v", p.Name, err)
		}
	}

	renamed, err := profiles.Upsert(ctx, models.Profile{UserID: ada.ID, Name: "Ada", IsPublic: true, UpdatedAt: now.Add(time.Minute)})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if renamed.Name != "Ada" || !renamed.CreatedAt.Equal(now) {
		t.Fatalf("expected update to keep created_at, got %+v", renamed)
	}

	visible, err := profiles.List(ctx, models.ProfileFilter{PublicOnly: true, ExcludeUserID: bob.ID})
	if err != nil {
		t.Fatalf("list profiles: %v", err)
	}
	if len(visible) != 1 || visible[0].UserID != ada.ID {
		t.Fatalf("expected only ada visible to bob, got %+v", visible)
	}

	all, err := profiles.List(ctx, models.ProfileFilter{})
	if err != nil {
		t.Fatalf("list all profiles: %v", err)
	}
	if len(all) != 3 || all[0].Name != "Ada" || all[1].Name != "Bob" || all[2].Name != "Cy" {
		t.Fatalf("unexpected ordering: %+v", all)
	}

	if err := profiles.SetPicture(ctx, bob.ID, "https://cdn.example.com/bob.png"); err != nil {
		t.Fatalf("set picture: %v", err)
	}
	if err := profiles.SetPicture(ctx, uuid.NewString(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing profile, got %v", err)
	}
	cleared, err := profiles.Upsert(ctx, models.Profile{UserID: bob.ID, Name: "Bob", IsPublic: true, UpdatedAt: now.Add(2 * time.Minute)})
	if err != nil {
		t.Fatalf("clear picture: %v", err)
	}
	if cleared.ProfilePicture != "" {
		t.Fatalf("expected upsert without a picture to clear it, got %q", cleared.ProfilePicture)
	}

	req := models.SwapRequest{
		ID: uuid.NewString(), FromUserID: bob.ID, FromUserName: "Bob", ToUserID: ada.ID, ToUserName: "Ada",
		Message: "hi", Status: models.StatusPending, CreatedAt: now,
	}
	if err := requests.Create(ctx, req); err != nil {
		t.Fatalf("create request: %v", err)
	}

	stats, err := profiles.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats != (models.Stats{TotalUsers: 3, TotalRequests: 1, PublicProfiles: 2}) {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := profiles.DeleteCascade(ctx, ada.ID); err != nil {
		t.Fatalf("delete cascade: %v", err)
	}
	if _, err := requests.Get(ctx, req.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected request removed with profile, got %v", err)
	}
	if err := profiles.DeleteCascade(ctx, ada.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestPostgresRequestRepository_ConditionalTransitions(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	repo := NewPostgresRequestRepository(testPool)
	sender := createTestUser(t, users, "sender@example.com")
	recipient := createTestUser(t, users, "recipient@example.com")

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	first := models.SwapRequest{
		ID: uuid.NewString(), FromUserID: sender.ID, FromUserName: "S", ToUserID: recipient.ID, ToUserName: "R",
		Message: "first", Status: models.StatusPending, CreatedAt: base,
	}
	second := first
	second.ID = uuid.NewString()
	second.Message = "second"
	second.CreatedAt = base.Add(time.Minute)

	for _, r := range []models.SwapRequest{first, second} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("create request: %v", err)
		}
	}
	if err := repo.Create(ctx, first); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate id, got %v", err)
	}

	orphan := first
	orphan.ID = uuid.NewString()
	orphan.ToUserID = uuid.NewString()
	if err := repo.Create(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown recipient, got %v", err)
	}

	listed, err := repo.ListForUser(ctx, recipient.ID)
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", listed)
	}

	accepted, err := repo.TransitionStatus(ctx, first.ID, models.StatusPending, models.StatusAccepted, time.Now())
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != models.StatusAccepted || accepted.RespondedAt == nil {
		t.Fatalf("unexpected accepted request: %+v", accepted)
	}

	if _, err := repo.TransitionStatus(ctx, first.ID, models.StatusPending, models.StatusRejected, time.Now()); !errors.Is(err, ErrStaleState) {
		t.Fatalf("expected ErrStaleState on second transition, got %v", err)
	}
	if _, err := repo.TransitionStatus(ctx, uuid.NewString(), models.StatusPending, models.StatusRejected, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown request, got %v", err)
	}

	if err := repo.DeleteIfStatus(ctx, first.ID, models.StatusPending); !errors.Is(err, ErrStaleState) {
		t.Fatalf("expected ErrStaleState deleting accepted request, got %v", err)
	}
	if err := repo.DeleteIfStatus(ctx, second.ID, models.StatusPending); err != nil {
		t.Fatalf("delete pending: %v", err)
	}
	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no requests left, got %d", len(all))
	}
}

func TestPostgresSessionStore_SaveFindAndDelete(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, userRepo, "owner@example.com")

	store := NewPostgresSessionStore(testPool)
	expires := time.Now().UTC().Add(24 * time.Hour)
	session := auth.Session{
		RefreshToken: uuid.NewString(),
		UserID:       user.ID,
		Email:        user.Email,
		DisplayName:  "owner",
		Role:         models.RoleAdmin,
		ExpiresAt:    expires,
	}

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	loaded, err := store.Find(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if loaded.UserID != session.UserID || loaded.Role != models.RoleAdmin || !timesClose(loaded.ExpiresAt, expires, time.Millisecond) {
		t.Fatalf("unexpected session loaded: %+v", loaded)
	}

	if err := store.Delete(ctx, session.RefreshToken); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.Find(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound deleting twice, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE swap_requests, profiles, sessions, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, email string) models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  "password-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
