package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skillswap/backend/internal/models"
)

// MemoryStore keeps users, profiles and swap requests in process memory. It
// backs tests and local runs without a database; the three repository views
// share one lock so cascading deletes stay atomic.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.User
	profiles map[string]models.Profile
	requests map[string]models.SwapRequest
	failWith error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		profiles: make(map[string]models.Profile),
		requests: make(map[string]models.SwapRequest),
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
}

// Users returns the user repository view.
func (s *MemoryStore) Users() *MemoryUserRepository { return &MemoryUserRepository{s} }

// Profiles returns the profile repository view.
func (s *MemoryStore) Profiles() *MemoryProfileRepository { return &MemoryProfileRepository{s} }

// Requests returns the swap request repository view.
func (s *MemoryStore) Requests() *MemoryRequestRepository { return &MemoryRequestRepository{s} }

// MemoryUserRepository is the UserRepository view of a MemoryStore.
type MemoryUserRepository struct{ s *MemoryStore }

func (r *MemoryUserRepository) Create(_ context.Context, user models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	if _, ok := r.s.users[user.ID]; ok {
		return ErrConflict
	}
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrConflict
		}
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	r.s.users[user.ID] = user
	return nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return models.User{}, r.s.failWith
	}
	for _, user := range r.s.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return models.User{}, r.s.failWith
	}
	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

// MemoryProfileRepository is the ProfileRepository view of a MemoryStore.
type MemoryProfileRepository struct{ s *MemoryStore }

func (r *MemoryProfileRepository) Get(_ context.Context, userID string) (models.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return models.Profile{}, r.s.failWith
	}
	profile, ok := r.s.profiles[userID]
	if !ok {
		return models.Profile{}, ErrNotFound
	}
	return cloneProfile(profile), nil
}

func (r *MemoryProfileRepository) List(_ context.Context, filter models.ProfileFilter) ([]models.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	var out []models.Profile
	for _, profile := range r.s.profiles {
		if filter.PublicOnly && !profile.IsPublic {
			continue
		}
		if filter.ExcludeUserID != "" && profile.UserID == filter.ExcludeUserID {
			continue
		}
		out = append(out, cloneProfile(profile))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (r *MemoryProfileRepository) Upsert(_ context.Context, profile models.Profile) (models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return models.Profile{}, r.s.failWith
	}
	profile = cloneProfile(profile)
	if existing, ok := r.s.profiles[profile.UserID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = profile.UpdatedAt
	}
	r.s.profiles[profile.UserID] = profile
	return cloneProfile(profile), nil
}

func (r *MemoryProfileRepository) SetPicture(_ context.Context, userID, uri string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	profile, ok := r.s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	profile.ProfilePicture = uri
	profile.UpdatedAt = time.Now().UTC()
	r.s.profiles[userID] = profile
	return nil
}

func (r *MemoryProfileRepository) DeleteCascade(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	if _, ok := r.s.profiles[userID]; !ok {
		return ErrNotFound
	}
	for id, req := range r.s.requests {
		if req.Involves(userID) {
			delete(r.s.requests, id)
		}
	}
	delete(r.s.profiles, userID)
	return nil
}

func (r *MemoryProfileRepository) Stats(context.Context) (models.Stats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return models.Stats{}, r.s.failWith
	}
	stats := models.Stats{
		TotalUsers:    len(r.s.profiles),
		TotalRequests: len(r.s.requests),
	}
	for _, profile := range r.s.profiles {
		if profile.IsPublic {
			stats.PublicProfiles++
		}
	}
	return stats, nil
}

// MemoryRequestRepository is the RequestRepository view of a MemoryStore.
type MemoryRequestRepository struct{ s *MemoryStore }

func (r *MemoryRequestRepository) Create(_ context.Context, request models.SwapRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	if _, ok := r.s.requests[request.ID]; ok {
		return ErrConflict
	}
	r.s.requests[request.ID] = request
	return nil
}

func (r *MemoryRequestRepository) Get(_ context.Context, id string) (models.SwapRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return models.SwapRequest{}, r.s.failWith
	}
	req, ok := r.s.requests[id]
	if !ok {
		return models.SwapRequest{}, ErrNotFound
	}
	return req, nil
}

func (r *MemoryRequestRepository) ListForUser(_ context.Context, userID string) ([]models.SwapRequest, error) {
	return r.list(func(req models.SwapRequest) bool { return req.Involves(userID) })
}

func (r *MemoryRequestRepository) ListAll(context.Context) ([]models.SwapRequest, error) {
	return r.list(func(models.SwapRequest) bool { return true })
}

func (r *MemoryRequestRepository) list(keep func(models.SwapRequest) bool) ([]models.SwapRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	var out []models.SwapRequest
	for _, req := range r.s.requests {
		if keep(req) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *MemoryRequestRepository) TransitionStatus(_ context.Context, id string, from, to models.RequestStatus, at time.Time) (models.SwapRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return models.SwapRequest{}, r.s.failWith
	}
	req, ok := r.s.requests[id]
	if !ok {
		return models.SwapRequest{}, ErrNotFound
	}
	if req.Status != from {
		return models.SwapRequest{}, ErrStaleState
	}
	at = at.UTC()
	req.Status = to
	req.RespondedAt = &at
	r.s.requests[id] = req
	return req, nil
}

func (r *MemoryRequestRepository) DeleteIfStatus(_ context.Context, id string, status models.RequestStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	req, ok := r.s.requests[id]
	if !ok {
		return ErrNotFound
	}
	if req.Status != status {
		return ErrStaleState
	}
	delete(r.s.requests, id)
	return nil
}

func (r *MemoryRequestRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	if _, ok := r.s.requests[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.requests, id)
	return nil
}

func cloneProfile(p models.Profile) models.Profile {
	p.SkillsOffered = append([]string{}, p.SkillsOffered...)
	p.SkillsWanted = append([]string{}, p.SkillsWanted...)
	p.Availability = append([]string{}, p.Availability...)
	return p
}

var _ UserRepository = (*MemoryUserRepository)(nil)
var _ ProfileRepository = (*MemoryProfileRepository)(nil)
var _ RequestRepository = (*MemoryRequestRepository)(nil)
