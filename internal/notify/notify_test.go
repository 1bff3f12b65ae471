package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/backend/internal/models"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []Message
	err   error
	block chan struct{}
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRequest() models.SwapRequest {
	return models.SwapRequest{
		ID:           "r1",
		FromUserName: "Ada",
		ToUserName:   "Grace",
		Message:      "Hi Grace! I'd love to connect for a skill exchange.",
	}
}

func TestRenderTemplates(t *testing.T) {
	sent, err := Render(ForRequest(EventRequestSent, "grace@example.com", sampleRequest()), "https://skillswap.test/")
	require.NoError(t, err)
	assert.Contains(t, sent, "Hi Grace,")
	assert.Contains(t, sent, "<strong>Ada</strong>")
	assert.Contains(t, sent, `href="https://skillswap.test/requests"`)
	assert.Contains(t, sent, "Hi Grace! I&#39;d love to connect")

	accepted, err := Render(ForRequest(EventRequestAccepted, "ada@example.com", sampleRequest()), "https://skillswap.test")
	require.NoError(t, err)
	assert.Contains(t, accepted, "Hi Ada,")
	assert.Contains(t, accepted, "Preferred meeting times")
	assert.Contains(t, accepted, "Session duration and frequency")
	assert.Contains(t, accepted, `href="https://skillswap.test/requests"`)

	rejected, err := Render(ForRequest(EventRequestRejected, "ada@example.com", sampleRequest()), "https://skillswap.test")
	require.NoError(t, err)
	assert.Contains(t, rejected, "has declined your skill swap request")
	assert.Contains(t, rejected, `href="https://skillswap.test/browse"`)
}

func TestRenderEscapesUserContent(t *testing.T) {
	req := sampleRequest()
	req.Message = `<script>alert("x")</script>`
	out, err := Render(ForRequest(EventRequestSent, "grace@example.com", req), "http://localhost:8080")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestRenderRejectsUnknownType(t *testing.T) {
	_, err := Render(Notification{Type: "request_exploded"}, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestNotificationValidate(t *testing.T) {
	n := Notification{To: " grace@example.com ", Type: EventRequestRejected}
	require.NoError(t, n.Validate())
	assert.Equal(t, "grace@example.com", n.To)
	assert.Equal(t, "Skill swap request update", n.Subject)

	bad := []Notification{
		{To: "", Type: EventRequestSent},
		{To: "not-an-email", Type: EventRequestSent},
		{To: "grace@example.com", Type: "nope"},
	}
	for _, n := range bad {
		err := n.Validate()
		assert.ErrorIs(t, err, models.ErrValidation, "%+v", n)
	}
}

func TestDispatcherReturnsPreviewAndWrapsSendFailure(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, "http://localhost:8080")

	outcome, err := d.Dispatch(context.Background(), ForRequest(EventRequestSent, "grace@example.com", sampleRequest()))
	require.NoError(t, err)
	assert.Contains(t, outcome.Preview, "New Skill Swap Request")
	require.Equal(t, 1, sender.count())
	assert.Equal(t, "New skill swap request from Ada", sender.sent[0].Subject)

	sender.err = errors.New("smtp down")
	_, err = d.Dispatch(context.Background(), ForRequest(EventRequestAccepted, "ada@example.com", sampleRequest()))
	assert.ErrorContains(t, err, "smtp down")
}

func TestSendGridSenderPostsMailSendRequest(t *testing.T) {
	var captured sendGridMailSendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewSendGridSender("sg-key", "noreply@skillswap.test")
	sender.Endpoint = srv.URL

	err := sender.Send(context.Background(), Message{To: "grace@example.com", Subject: "Hello", Type: EventRequestSent, HTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sg-key", auth)
	require.Len(t, captured.Personalizations, 1)
	assert.Equal(t, "grace@example.com", captured.Personalizations[0].To[0].Email)
	assert.Equal(t, "Hello", captured.Personalizations[0].Subject)
	assert.Equal(t, "text/html", captured.Content[0].Type)
	assert.Equal(t, "noreply@skillswap.test", captured.From.Email)
}

func TestSendGridSenderReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	sender := NewSendGridSender("sg-key", "noreply@skillswap.test")
	sender.Endpoint = srv.URL
	err := sender.Send(context.Background(), Message{To: "a@b.c"})
	assert.ErrorContains(t, err, "401")

	missing := NewSendGridSender("", "noreply@skillswap.test")
	assert.Error(t, missing.Send(context.Background(), Message{}))
}

func TestQueueDeliversAndDrains(t *testing.T) {
	sender := &recordingSender{}
	q := NewQueue(NewDispatcher(sender, ""), QueueConfig{QueueSize: 4, Workers: 2}, discardLogger())

	for i := 0; i < 3; i++ {
		q.Notify(context.Background(), ForRequest(EventRequestSent, "grace@example.com", sampleRequest()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
	assert.Equal(t, 3, sender.count())

	q.Notify(context.Background(), ForRequest(EventRequestSent, "grace@example.com", sampleRequest()))
	assert.Equal(t, 3, sender.count())
}

func TestQueueNotifyNeverBlocks(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	q := NewQueue(NewDispatcher(sender, ""), QueueConfig{QueueSize: 1, Workers: 1}, discardLogger())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			q.Notify(context.Background(), ForRequest(EventRequestSent, "grace@example.com", sampleRequest()))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}

	close(sender.block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
	assert.LessOrEqual(t, sender.count(), 2)
	assert.GreaterOrEqual(t, sender.count(), 1)
}

func TestQueueSwallowsDispatchFailures(t *testing.T) {
	sender := &recordingSender{err: errors.New("boom")}
	q := NewQueue(NewDispatcher(sender, ""), QueueConfig{QueueSize: 2, Workers: 1}, discardLogger())

	q.Notify(context.Background(), ForRequest(EventRequestRejected, "ada@example.com", sampleRequest()))
	q.Notify(context.Background(), Notification{To: "bad", Type: EventRequestSent})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
	assert.Equal(t, 1, sender.count())
}
