// Package profiles manages each user's own skill-exchange profile and its
// picture, plus the administrative views over all profiles.
package profiles

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/skillswap/backend/internal/logging"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/realtime"
	"github.com/skillswap/backend/internal/repositories"
)

// Uploader stores picture bytes and returns the URI they are served from.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// Input is the editable part of a profile. A nil ProfilePicture keeps the
// stored picture and an empty one clears it. A nil IsPublic defaults to true
// for new profiles and to the stored value otherwise.
type Input struct {
	Name           string   `json:"name"`
	Location       string   `json:"location"`
	SkillsOffered  []string `json:"skillsOffered"`
	SkillsWanted   []string `json:"skillsWanted"`
	Availability   []string `json:"availability"`
	ProfilePicture *string  `json:"profilePicture"`
	IsPublic       *bool    `json:"isPublic"`
}

// Service reads and writes profiles on behalf of an actor.
type Service struct {
	profiles repositories.ProfileRepository
	uploader Uploader
	feed     realtime.Feed

	NowFunc func() time.Time
}

// NewService constructs a Service. feed may be nil.
func NewService(profiles repositories.ProfileRepository, uploader Uploader, feed realtime.Feed) *Service {
	return &Service{
		profiles: profiles,
		uploader: uploader,
		feed:     feed,
		NowFunc:  time.Now,
	}
}

// Get returns the actor's own profile.
func (s *Service) Get(ctx context.Context, actor models.Actor) (models.Profile, error) {
	profile, err := s.profiles.Get(ctx, actor.UserID)
	if err != nil {
		return models.Profile{}, translate("load profile", err)
	}
	return profile, nil
}

// GetPublic returns userID's profile when actorID may see it. Private profiles
// are reported as missing.
func (s *Service) GetPublic(ctx context.Context, actorID, userID string) (models.Profile, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return models.Profile{}, translate("load profile", err)
	}
	if !profile.IsPublic && profile.UserID != actorID {
		return models.Profile{}, models.ErrNotFound
	}
	return profile, nil
}

// Save validates input and stores it as the actor's profile.
func (s *Service) Save(ctx context.Context, actor models.Actor, input Input) (models.Profile, error) {
	profile, err := normalize(input)
	if err != nil {
		return models.Profile{}, err
	}

	isPublic, picture := true, ""
	existing, err := s.profiles.Get(ctx, actor.UserID)
	switch {
	case err == nil:
		isPublic, picture = existing.IsPublic, existing.ProfilePicture
	case !errors.Is(err, repositories.ErrNotFound):
		return models.Profile{}, models.Upstream("load profile", err)
	}
	if input.IsPublic != nil {
		isPublic = *input.IsPublic
	}
	if input.ProfilePicture != nil {
		picture = strings.TrimSpace(*input.ProfilePicture)
	}

	profile.UserID = actor.UserID
	profile.Email = actor.Email
	profile.IsPublic = isPublic
	profile.ProfilePicture = picture
	profile.UpdatedAt = s.NowFunc().UTC()

	saved, err := s.profiles.Upsert(ctx, profile)
	if err != nil {
		return models.Profile{}, models.Upstream("save profile", err)
	}

	s.publish(ctx, realtime.OpUpdate, saved.UserID)
	logging.FromContext(ctx).Info("profile saved", slog.String("user_id", saved.UserID), slog.Bool("public", saved.IsPublic))
	return saved, nil
}

func normalize(input Input) (models.Profile, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return models.Profile{}, models.NewValidationError("name", "name is required")
	}

	availability := make([]string, 0, len(input.Availability))
	seen := make(map[string]struct{}, len(input.Availability))
	for _, label := range input.Availability {
		canonical, ok := models.CanonicalAvailability(label)
		if !ok {
			return models.Profile{}, models.NewValidationError("availability", "unknown availability option "+label)
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		availability = append(availability, canonical)
	}

	return models.Profile{
		Name:          name,
		Location:      strings.TrimSpace(input.Location),
		SkillsOffered: cleanSkills(input.SkillsOffered),
		SkillsWanted:  cleanSkills(input.SkillsWanted),
		Availability:  availability,
	}, nil
}

// cleanSkills trims each skill and drops blank entries, keeping order and
// duplicates.
func cleanSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		if skill = strings.TrimSpace(skill); skill != "" {
			out = append(out, skill)
		}
	}
	return out
}

// AdminDelete removes a profile together with every swap request referencing
// the user.
func (s *Service) AdminDelete(ctx context.Context, admin models.AdminCapability, userID string) error {
	if !admin.Valid() {
		return models.ErrNotAuthorized
	}
	if err := s.profiles.DeleteCascade(ctx, userID); err != nil {
		return translate("delete profile", err)
	}
	logging.FromContext(ctx).Info("profile removed by admin", slog.String("user_id", userID), slog.String("admin_id", admin.GrantedTo()))
	s.publish(ctx, realtime.OpDelete, userID)
	if s.feed != nil {
		if err := s.feed.Publish(ctx, realtime.NewChange(realtime.TableRequests, realtime.OpDelete, userID)); err != nil {
			logging.FromContext(ctx).Warn("publish request change", slog.String("error", err.Error()))
		}
	}
	return nil
}

// AdminList returns every profile, public or not.
func (s *Service) AdminList(ctx context.Context, admin models.AdminCapability) ([]models.Profile, error) {
	if !admin.Valid() {
		return nil, models.ErrNotAuthorized
	}
	all, err := s.profiles.List(ctx, models.ProfileFilter{})
	if err != nil {
		return nil, models.Upstream("list profiles", err)
	}
	if all == nil {
		all = []models.Profile{}
	}
	return all, nil
}

// Stats returns platform totals.
func (s *Service) Stats(ctx context.Context, admin models.AdminCapability) (models.Stats, error) {
	if !admin.Valid() {
		return models.Stats{}, models.ErrNotAuthorized
	}
	stats, err := s.profiles.Stats(ctx)
	if err != nil {
		return models.Stats{}, models.Upstream("load stats", err)
	}
	return stats, nil
}

func (s *Service) publish(ctx context.Context, op, userID string) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, realtime.NewChange(realtime.TableProfiles, op, userID)); err != nil {
		logging.FromContext(ctx).Warn("publish profile change", slog.String("error", err.Error()))
	}
}

func translate(op string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return models.ErrNotFound
	}
	return models.Upstream(op, err)
}
