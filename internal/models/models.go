package models

import (
	"strings"
	"time"
)

// Roles understood by the identity layer.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account within the SkillSwap platform.
type User struct {
	ID          string
	Email       string
	Password    string
	DisplayName string
	Role        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Actor is the authenticated user performing an operation. It is passed
// explicitly into every domain call.
type Actor struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

// AdminCapability grants the holder the right to bypass ownership checks.
// The zero value grants nothing; obtain one through Actor.AdminCapability.
type AdminCapability struct {
	grantedTo string
}

// GrantedTo returns the admin user id the capability was issued to.
func (c AdminCapability) GrantedTo() string {
	return c.grantedTo
}

// Valid reports whether the capability was issued by Actor.AdminCapability.
func (c AdminCapability) Valid() bool {
	return c.grantedTo != ""
}

// AdminCapability returns an admin capability when the actor holds the admin role.
func (a Actor) AdminCapability() (AdminCapability, bool) {
	if a.UserID == "" || a.Role != RoleAdmin {
		return AdminCapability{}, false
	}
	return AdminCapability{grantedTo: a.UserID}, true
}

// AvailabilityOptions lists the time-slot labels a profile may advertise.
var AvailabilityOptions = []string{
	"Weekday Mornings",
	"Weekday Afternoons",
	"Weekday Evenings",
	"Weekend Mornings",
	"Weekend Afternoons",
	"Weekend Evenings",
}

// CanonicalAvailability maps a label onto its predefined spelling, ignoring case.
func CanonicalAvailability(label string) (string, bool) {
	label = strings.TrimSpace(label)
	for _, option := range AvailabilityOptions {
		if strings.EqualFold(option, label) {
			return option, true
		}
	}
	return "", false
}

// Profile is a user's skill-exchange listing.
type Profile struct {
	UserID         string    `json:"userId"`
	Name           string    `json:"name"`
	Email          string    `json:"-"`
	Location       string    `json:"location"`
	SkillsOffered  []string  `json:"skillsOffered"`
	SkillsWanted   []string  `json:"skillsWanted"`
	Availability   []string  `json:"availability"`
	IsPublic       bool      `json:"isPublic"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ProfileFilter narrows a profile listing.
type ProfileFilter struct {
	PublicOnly    bool
	ExcludeUserID string
}

// RequestStatus is the lifecycle state of a swap request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusRejected RequestStatus = "rejected"
)

// Terminal reports whether no further transition is permitted from s.
func (s RequestStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// SwapRequest is a directed proposal from one user to another to exchange skills.
type SwapRequest struct {
	ID           string        `json:"id"`
	FromUserID   string        `json:"fromUserId"`
	FromUserName string        `json:"fromUserName"`
	ToUserID     string        `json:"toUserId"`
	ToUserName   string        `json:"toUserName"`
	Message      string        `json:"message"`
	Status       RequestStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	RespondedAt  *time.Time    `json:"respondedAt,omitempty"`
}

// Involves reports whether userID is the sender or the recipient.
func (r SwapRequest) Involves(userID string) bool {
	return r.FromUserID == userID || r.ToUserID == userID
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Stats summarises platform totals for administrators.
type Stats struct {
	TotalUsers     int `json:"totalUsers"`
	TotalRequests  int `json:"totalRequests"`
	PublicProfiles int `json:"publicProfiles"`
}
