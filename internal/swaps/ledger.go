// Package swaps enforces the swap request state machine: pending requests are
// accepted or rejected once by their recipient, or withdrawn by their sender.
package swaps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/backend/internal/logging"
	"github.com/skillswap/backend/internal/metrics"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/notify"
	"github.com/skillswap/backend/internal/realtime"
	"github.com/skillswap/backend/internal/repositories"
)

// ProfileLookup resolves the profiles of the two parties.
type ProfileLookup interface {
	Get(ctx context.Context, userID string) (models.Profile, error)
}

// Notifier receives best-effort notifications. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification)
}

// Ledger mediates every read and write of swap requests.
type Ledger struct {
	requests repositories.RequestRepository
	profiles ProfileLookup
	notifier Notifier
	feed     realtime.Feed

	// NowFunc and NewID are overridable for tests.
	NowFunc func() time.Time
	NewID   func() (string, error)
}

// NewLedger constructs a Ledger. feed may be nil.
func NewLedger(requests repositories.RequestRepository, profiles ProfileLookup, notifier Notifier, feed realtime.Feed) *Ledger {
	return &Ledger{
		requests: requests,
		profiles: profiles,
		notifier: notifier,
		feed:     feed,
		NowFunc:  time.Now,
		NewID:    newRequestID,
	}
}

func newRequestID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// DefaultMessage is the message used when the sender leaves it blank.
func DefaultMessage(toUserName string) string {
	return fmt.Sprintf("Hi %s! I'd love to connect for a skill exchange.", toUserName)
}

// Create files a pending request from actor to toUserID.
func (l *Ledger) Create(ctx context.Context, actor models.Actor, toUserID, message string) (req models.SwapRequest, err error) {
	ctx, span := logging.StartSpan(ctx, "swaps.create")
	defer func() { span.RecordError(err); span.End() }()

	toUserID = strings.TrimSpace(toUserID)
	if toUserID == "" {
		return models.SwapRequest{}, models.NewValidationError("toUserId", "recipient is required")
	}
	if actor.UserID == toUserID {
		return models.SwapRequest{}, models.ErrSelfRequest
	}

	recipient, err := l.profiles.Get(ctx, toUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SwapRequest{}, fmt.Errorf("recipient profile: %w", models.ErrNotFound)
		}
		return models.SwapRequest{}, models.Upstream("load recipient profile", err)
	}

	fromName, err := l.senderName(ctx, actor)
	if err != nil {
		return models.SwapRequest{}, err
	}

	message = strings.TrimSpace(message)
	if message == "" {
		message = DefaultMessage(recipient.Name)
	}

	id, err := l.NewID()
	if err != nil {
		return models.SwapRequest{}, fmt.Errorf("generate request id: %w", err)
	}

	req = models.SwapRequest{
		ID:           id,
		FromUserID:   actor.UserID,
		FromUserName: fromName,
		ToUserID:     recipient.UserID,
		ToUserName:   recipient.Name,
		Message:      message,
		Status:       models.StatusPending,
		CreatedAt:    l.NowFunc().UTC(),
	}

	if err := l.requests.Create(ctx, req); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SwapRequest{}, fmt.Errorf("request party: %w", models.ErrNotFound)
		}
		return models.SwapRequest{}, models.Upstream("insert swap request", err)
	}

	metrics.RecordTransition(string(models.StatusPending))
	l.publish(ctx, realtime.OpInsert, req.ID)
	if recipient.Email != "" {
		l.notifier.Notify(ctx, notify.ForRequest(notify.EventRequestSent, recipient.Email, req))
	}
	logging.FromContext(ctx).Info("swap request created", slog.String("request_id", req.ID), slog.String("to_user_id", req.ToUserID))

	return req, nil
}

// senderName prefers the session display name, then the sender's profile name.
func (l *Ledger) senderName(ctx context.Context, actor models.Actor) (string, error) {
	if name := strings.TrimSpace(actor.DisplayName); name != "" {
		return name, nil
	}
	profile, err := l.profiles.Get(ctx, actor.UserID)
	switch {
	case err == nil && strings.TrimSpace(profile.Name) != "":
		return profile.Name, nil
	case err == nil, errors.Is(err, repositories.ErrNotFound):
		return "User", nil
	default:
		return "", models.Upstream("load sender profile", err)
	}
}

// Accept moves a pending request addressed to actor to accepted.
func (l *Ledger) Accept(ctx context.Context, actor models.Actor, id string) (models.SwapRequest, error) {
	return l.respond(ctx, actor, id, models.StatusAccepted, notify.EventRequestAccepted)
}

// Reject moves a pending request addressed to actor to rejected.
func (l *Ledger) Reject(ctx context.Context, actor models.Actor, id string) (models.SwapRequest, error) {
	return l.respond(ctx, actor, id, models.StatusRejected, notify.EventRequestRejected)
}

func (l *Ledger) respond(ctx context.Context, actor models.Actor, id string, to models.RequestStatus, event notify.EventType) (req models.SwapRequest, err error) {
	ctx, span := logging.StartSpan(ctx, "swaps."+string(to))
	defer func() { span.RecordError(err); span.End() }()

	current, err := l.load(ctx, id)
	if err != nil {
		return models.SwapRequest{}, err
	}
	if current.ToUserID != actor.UserID {
		return models.SwapRequest{}, models.ErrNotAuthorized
	}
	if current.Status != models.StatusPending {
		return models.SwapRequest{}, models.ErrInvalidTransition
	}

	req, err = l.requests.TransitionStatus(ctx, id, models.StatusPending, to, l.NowFunc())
	if err != nil {
		return models.SwapRequest{}, translate("update swap request status", err)
	}

	metrics.RecordTransition(string(to))
	l.publish(ctx, realtime.OpUpdate, req.ID)
	l.notifySender(ctx, event, req)
	logging.FromContext(ctx).Info("swap request answered", slog.String("request_id", req.ID), slog.String("status", string(to)))

	return req, nil
}

func (l *Ledger) notifySender(ctx context.Context, event notify.EventType, req models.SwapRequest) {
	sender, err := l.profiles.Get(ctx, req.FromUserID)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logging.FromContext(ctx).Warn("load sender for notification", slog.String("request_id", req.ID), slog.String("error", err.Error()))
		}
		return
	}
	if sender.Email == "" {
		return
	}
	l.notifier.Notify(ctx, notify.ForRequest(event, sender.Email, req))
}

// Delete withdraws a pending request the actor sent.
func (l *Ledger) Delete(ctx context.Context, actor models.Actor, id string) (err error) {
	ctx, span := logging.StartSpan(ctx, "swaps.delete")
	defer func() { span.RecordError(err); span.End() }()

	current, err := l.load(ctx, id)
	if err != nil {
		return err
	}
	if current.FromUserID != actor.UserID {
		return models.ErrNotAuthorized
	}
	if current.Status != models.StatusPending {
		return models.ErrInvalidTransition
	}

	if err := l.requests.DeleteIfStatus(ctx, id, models.StatusPending); err != nil {
		return translate("delete swap request", err)
	}
	l.publish(ctx, realtime.OpDelete, id)
	return nil
}

// Get returns a request the actor is a party to.
func (l *Ledger) Get(ctx context.Context, actor models.Actor, id string) (models.SwapRequest, error) {
	req, err := l.load(ctx, id)
	if err != nil {
		return models.SwapRequest{}, err
	}
	if !req.Involves(actor.UserID) {
		return models.SwapRequest{}, models.ErrNotAuthorized
	}
	return req, nil
}

// NotificationFor builds the email a party may resend about a request. The
// recipient and quoted content always come from the stored request: the
// sender may resend request_sent to the recipient, and the recipient may
// resend the answer it gave to the sender.
func (l *Ledger) NotificationFor(ctx context.Context, actor models.Actor, id string, event notify.EventType) (notify.Notification, error) {
	if !event.Valid() {
		return notify.Notification{}, models.NewValidationError("type", fmt.Sprintf("unknown notification type %q", event))
	}
	req, err := l.Get(ctx, actor, id)
	if err != nil {
		return notify.Notification{}, err
	}

	var recipientID string
	switch event {
	case notify.EventRequestSent:
		if req.FromUserID != actor.UserID {
			return notify.Notification{}, models.ErrNotAuthorized
		}
		recipientID = req.ToUserID
	case notify.EventRequestAccepted, notify.EventRequestRejected:
		if req.ToUserID != actor.UserID {
			return notify.Notification{}, models.ErrNotAuthorized
		}
		if (event == notify.EventRequestAccepted) != (req.Status == models.StatusAccepted) ||
			req.Status == models.StatusPending {
			return notify.Notification{}, models.ErrInvalidTransition
		}
		recipientID = req.FromUserID
	}

	recipient, err := l.profiles.Get(ctx, recipientID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return notify.Notification{}, fmt.Errorf("recipient profile: %w", models.ErrNotFound)
		}
		return notify.Notification{}, models.Upstream("load recipient profile", err)
	}
	if strings.TrimSpace(recipient.Email) == "" {
		return notify.Notification{}, models.NewValidationError("to", "recipient has no email address")
	}
	return notify.ForRequest(event, recipient.Email, req), nil
}

// ListFor partitions the requests referencing userID by direction, newest first.
func (l *Ledger) ListFor(ctx context.Context, userID string) (sent, received []models.SwapRequest, err error) {
	all, err := l.requests.ListForUser(ctx, userID)
	if err != nil {
		return nil, nil, models.Upstream("list swap requests", err)
	}

	sent, received = []models.SwapRequest{}, []models.SwapRequest{}
	for _, req := range all {
		switch {
		case req.FromUserID == userID:
			sent = append(sent, req)
		case req.ToUserID == userID:
			received = append(received, req)
		}
	}
	sortNewestFirst(sent)
	sortNewestFirst(received)
	return sent, received, nil
}

// AdminDelete removes any request regardless of ownership or status.
func (l *Ledger) AdminDelete(ctx context.Context, admin models.AdminCapability, id string) error {
	if !admin.Valid() {
		return models.ErrNotAuthorized
	}
	if err := l.requests.Delete(ctx, id); err != nil {
		return translate("delete swap request", err)
	}
	logging.FromContext(ctx).Info("swap request removed by admin", slog.String("request_id", id), slog.String("admin_id", admin.GrantedTo()))
	l.publish(ctx, realtime.OpDelete, id)
	return nil
}

// AdminList returns every request, newest first.
func (l *Ledger) AdminList(ctx context.Context, admin models.AdminCapability) ([]models.SwapRequest, error) {
	if !admin.Valid() {
		return nil, models.ErrNotAuthorized
	}
	all, err := l.requests.ListAll(ctx)
	if err != nil {
		return nil, models.Upstream("list swap requests", err)
	}
	if all == nil {
		all = []models.SwapRequest{}
	}
	sortNewestFirst(all)
	return all, nil
}

func (l *Ledger) load(ctx context.Context, id string) (models.SwapRequest, error) {
	if strings.TrimSpace(id) == "" {
		return models.SwapRequest{}, models.NewValidationError("id", "request id is required")
	}
	req, err := l.requests.Get(ctx, id)
	if err != nil {
		return models.SwapRequest{}, translate("load swap request", err)
	}
	return req, nil
}

func (l *Ledger) publish(ctx context.Context, op, key string) {
	if l.feed == nil {
		return
	}
	if err := l.feed.Publish(ctx, realtime.NewChange(realtime.TableRequests, op, key)); err != nil {
		logging.FromContext(ctx).Warn("publish request change", slog.String("error", err.Error()))
	}
}

// translate maps repository errors onto the domain taxonomy.
func translate(op string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	case errors.Is(err, repositories.ErrStaleState):
		return fmt.Errorf("%s: %w", op, models.ErrInvalidTransition)
	default:
		return models.Upstream(op, err)
	}
}

func sortNewestFirst(requests []models.SwapRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		if !requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].CreatedAt.After(requests[j].CreatedAt)
		}
		return requests[i].ID > requests[j].ID
	})
}
