package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillswap/backend/internal/config"
	"github.com/skillswap/backend/internal/db"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/repositories"
)

const defaultFakeAccounts = 12

var fakeSkills = []string{
	"Python", "Go", "JavaScript", "Guitar", "Piano", "Photography", "Cooking",
	"Spanish", "French", "Mandarin", "Yoga", "Public Speaking", "Watercolor",
	"Woodworking", "Knitting", "Chess", "Data Analysis", "UX Design",
	"Video Editing", "Gardening", "Baking", "Rock Climbing", "Calligraphy",
}

type fakeAccount struct {
	User    models.User
	Profile models.Profile
}

// fakeAccounts generates count users with matching profiles. Every account
// shares passwordHash; roughly one in five profiles is private.
func fakeAccounts(faker *gofakeit.Faker, count int, passwordHash string, now time.Time) []fakeAccount {
	accounts := make([]fakeAccount, 0, count)
	seen := make(map[string]struct{}, count)
	for len(accounts) < count {
		first, last := faker.FirstName(), faker.LastName()
		email := strings.ToLower(fmt.Sprintf("%s.%s.%d@example.com", first, last, faker.Number(1, 9999)))
		email = strings.ReplaceAll(email, " ", "")
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}

		id := uuid.NewString()
		name := first + " " + last
		var availability []string
		for _, option := range models.AvailabilityOptions {
			if faker.Number(0, 2) == 0 {
				availability = append(availability, option)
			}
		}

		accounts = append(accounts, fakeAccount{
			User: models.User{
				ID:          id,
				Email:       email,
				Password:    passwordHash,
				DisplayName: name,
				Role:        models.RoleUser,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
			Profile: models.Profile{
				UserID:        id,
				Name:          name,
				Email:         email,
				Location:      faker.City() + ", " + faker.Country(),
				SkillsOffered: pickSkills(faker, faker.Number(1, 4)),
				SkillsWanted:  pickSkills(faker, faker.Number(1, 3)),
				Availability:  availability,
				IsPublic:      faker.Number(1, 5) != 1,
				UpdatedAt:     now,
			},
		})
	}
	return accounts
}

func pickSkills(faker *gofakeit.Faker, n int) []string {
	skills := make([]string, 0, n)
	for i := 0; i < n; i++ {
		skills = append(skills, faker.RandomString(fakeSkills))
	}
	return skills
}

// runFakeSeed inserts count fake accounts and an admin account, printing the
// credentials to out.
func runFakeSeed(ctx context.Context, cfg config.Config, count int, out io.Writer) error {
	faker := gofakeit.New(0)
	password := faker.Password(true, true, true, false, false, 16)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash fake password: %w", err)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	return insertFakeAccounts(ctx, pool, faker, count, string(hash), password, out)
}

func insertFakeAccounts(ctx context.Context, pool db.Pool, faker *gofakeit.Faker, count int, hash, password string, out io.Writer) error {
	users := repositories.NewPostgresUserRepository(pool)
	profiles := repositories.NewPostgresProfileRepository(pool)
	now := time.Now().UTC()

	admin := models.User{
		ID:          uuid.NewString(),
		Email:       fmt.Sprintf("admin+%d@skillswap.local", faker.Number(1000, 9999)),
		Password:    hash,
		DisplayName: "SkillSwap Admin",
		Role:        models.RoleAdmin,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}

	for _, account := range fakeAccounts(faker, count, hash, now) {
		if err := users.Create(ctx, account.User); err != nil {
			return fmt.Errorf("create fake user %s: %w", account.User.Email, err)
		}
		if _, err := profiles.Upsert(ctx, account.Profile); err != nil {
			return fmt.Errorf("create fake profile %s: %w", account.User.Email, err)
		}
		fmt.Fprintf(out, "user  %s\n", account.User.Email)
	}

	fmt.Fprintf(out, "admin %s\n", admin.Email)
	fmt.Fprintf(out, "password for all seeded accounts: %s\n", password)
	return nil
}
