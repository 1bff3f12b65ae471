// Package directory computes the profiles an actor may browse.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/skillswap/backend/internal/logging"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/realtime"
)

// ProfileReader is the slice of the profile store the directory needs.
type ProfileReader interface {
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, error)
}

// Directory lists browseable profiles.
type Directory struct {
	profiles ProfileReader
}

// New constructs a Directory reading from profiles.
func New(profiles ProfileReader) *Directory {
	return &Directory{profiles: profiles}
}

// IsVisible reports whether actorID may see p in the directory.
func IsVisible(p models.Profile, actorID string) bool {
	return p.IsPublic && p.UserID != actorID
}

// ListVisible returns every public profile except the actor's own, ordered by
// case-folded name then user id.
func (d *Directory) ListVisible(ctx context.Context, actorID string) ([]models.Profile, error) {
	fetched, err := d.profiles.List(ctx, models.ProfileFilter{PublicOnly: true, ExcludeUserID: actorID})
	if err != nil {
		return nil, models.Upstream("list profiles", err)
	}

	visible := make([]models.Profile, 0, len(fetched))
	for _, p := range fetched {
		if IsVisible(p, actorID) {
			visible = append(visible, p)
		}
	}
	sortProfiles(visible)
	return visible, nil
}

// Browse lists visible profiles narrowed by term and availability slot.
func (d *Directory) Browse(ctx context.Context, actorID, term, slot string) ([]models.Profile, error) {
	visible, err := d.ListVisible(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return FilterByAvailability(Search(visible, term), slot), nil
}

// Search keeps profiles whose name, location or any skill contains term,
// ignoring case. A blank term returns profiles unchanged.
func Search(profiles []models.Profile, term string) []models.Profile {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return profiles
	}

	out := make([]models.Profile, 0, len(profiles))
	for _, p := range profiles {
		if matches(p, term) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p models.Profile, term string) bool {
	if contains(p.Name, term) || contains(p.Location, term) {
		return true
	}
	for _, skill := range p.SkillsOffered {
		if contains(skill, term) {
			return true
		}
	}
	for _, skill := range p.SkillsWanted {
		if contains(skill, term) {
			return true
		}
	}
	return false
}

// FilterByAvailability keeps profiles advertising a slot containing slot,
// ignoring case. "all" and blank are no-ops.
func FilterByAvailability(profiles []models.Profile, slot string) []models.Profile {
	slot = strings.ToLower(strings.TrimSpace(slot))
	if slot == "" || slot == "all" {
		return profiles
	}

	out := make([]models.Profile, 0, len(profiles))
	for _, p := range profiles {
		for _, label := range p.Availability {
			if contains(label, slot) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// Paging defaults.
const (
	DefaultPerPage = 12
	MaxPerPage     = 100
)

// Page returns the 1-based page of profiles and the total page count.
// Out-of-range pages yield an empty slice.
func Page(profiles []models.Profile, page, perPage int) ([]models.Profile, int) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page <= 0 {
		page = 1
	}

	total := (len(profiles) + perPage - 1) / perPage
	start := (page - 1) * perPage
	if start >= len(profiles) {
		return []models.Profile{}, total
	}
	end := start + perPage
	if end > len(profiles) {
		end = len(profiles)
	}
	return profiles[start:end], total
}

// Watch calls fn with the browse result once, then again after every profile
// change event until ctx ends or the subscription closes. Events only cue a
// full refetch. Fetch failures are logged and the watcher waits for the next
// event.
func (d *Directory) Watch(ctx context.Context, feed realtime.Feed, actorID, term, slot string, fn func([]models.Profile)) error {
	events, cancel, err := feed.Subscribe(ctx, realtime.TableProfiles)
	if err != nil {
		return models.Upstream("subscribe to profile changes", err)
	}
	defer cancel()

	logger := logging.FromContext(ctx)
	refresh := func() {
		profiles, err := d.Browse(ctx, actorID, term, slot)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warn("refresh directory", slog.String("error", err.Error()))
			}
			return
		}
		fn(profiles)
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-events:
			if !ok {
				return nil
			}
			drain(events)
			refresh()
		}
	}
}

// drain discards queued cues; one refetch covers them all.
func drain(events <-chan realtime.ChangeEvent) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func sortProfiles(profiles []models.Profile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		a, b := strings.ToLower(profiles[i].Name), strings.ToLower(profiles[j].Name)
		if a != b {
			return a < b
		}
		return profiles[i].UserID < profiles[j].UserID
	})
}

func contains(value, loweredTerm string) bool {
	return strings.Contains(strings.ToLower(value), loweredTerm)
}
