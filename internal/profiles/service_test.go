package profiles

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/realtime"
	"github.com/skillswap/backend/internal/repositories"
	"github.com/skillswap/backend/internal/storage"
)

var (
	ada   = models.Actor{UserID: "1", Email: "ada@example.com", DisplayName: "Ada"}
	admin = models.Actor{UserID: "root", Role: models.RoleAdmin}
)

type failingUploader struct{}

func (failingUploader) Upload(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket unreachable")
}

func newTestService(t *testing.T) (*Service, *repositories.MemoryStore, *storage.MemoryStorage, *realtime.MemoryFeed) {
	t.Helper()
	store := repositories.NewMemoryStore()
	objects := storage.NewMemoryStorage("https://cdn.example.com")
	feed := realtime.NewMemoryFeed()
	svc := NewService(store.Profiles(), objects, feed)
	svc.NowFunc = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, store, objects, feed
}

func boolPtr(b bool) *bool { return &b }

func TestSaveNormalizesAndDefaultsPublic(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	saved, err := svc.Save(context.Background(), ada, Input{
		Name:          "  Ada Lovelace ",
		Location:      " London ",
		SkillsOffered: []string{" Math ", "", "Math"},
		SkillsWanted:  []string{"Poetry"},
		Availability:  []string{"weekend mornings", "Weekend Mornings", "Weekday Evenings"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", saved.Name)
	assert.Equal(t, "London", saved.Location)
	assert.Equal(t, []string{"Math", "Math"}, saved.SkillsOffered)
	assert.Equal(t, []string{"Weekend Mornings", "Weekday Evenings"}, saved.Availability)
	assert.True(t, saved.IsPublic)
	assert.Equal(t, "ada@example.com", saved.Email)

	again, err := svc.Save(context.Background(), ada, Input{Name: "Ada", IsPublic: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, again.IsPublic)

	kept, err := svc.Save(context.Background(), ada, Input{Name: "Ada"})
	require.NoError(t, err)
	assert.False(t, kept.IsPublic, "omitted isPublic keeps the stored value")
}

func TestSaveValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Save(context.Background(), ada, Input{Name: "   "})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	_, err = svc.Save(context.Background(), ada, Input{Name: "Ada", Availability: []string{"Midnight"}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "availability", verr.Field)
}

func TestSavePublishesProfileChange(t *testing.T) {
	svc, _, _, feed := newTestService(t)
	events, cancel, err := feed.Subscribe(context.Background(), realtime.TableProfiles)
	require.NoError(t, err)
	defer cancel()

	_, err = svc.Save(context.Background(), ada, Input{Name: "Ada"})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, "1", ev.Key)
	case <-time.After(time.Second):
		t.Fatal("expected a change event")
	}
}

func TestGetAndGetPublic(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, ada)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.Save(ctx, ada, Input{Name: "Ada", IsPublic: boolPtr(false)})
	require.NoError(t, err)

	own, err := svc.Get(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, "Ada", own.Name)

	_, err = svc.GetPublic(ctx, "2", "1")
	assert.ErrorIs(t, err, models.ErrNotFound, "private profiles look missing")
	_, err = svc.GetPublic(ctx, "1", "1")
	assert.NoError(t, err)

	_, err = svc.Save(ctx, ada, Input{Name: "Ada", IsPublic: boolPtr(true)})
	require.NoError(t, err)
	_, err = svc.GetPublic(ctx, "2", "1")
	assert.NoError(t, err)
}

func TestStoreFailuresAreUpstream(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.FailWith(errors.New("connection reset"))

	_, err := svc.Save(context.Background(), ada, Input{Name: "Ada"})
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	_, err = svc.Get(context.Background(), ada)
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2)), nil))
	return buf.Bytes()
}

func TestUploadPictureStoresAndLinksProfile(t *testing.T) {
	svc, store, objects, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Save(ctx, ada, Input{Name: "Ada"})
	require.NoError(t, err)

	data := encodePNG(t)
	uri, err := svc.UploadPicture(ctx, ada, "me.png", "image/png", bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/profile-pictures/1-1700000000000.png", uri)

	obj, ok := objects.Object("profile-pictures/1-1700000000000.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, data, obj.Data)

	profile, err := store.Profiles().Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, uri, profile.ProfilePicture)
}

func TestUploadPictureWithoutProfileReturnsURI(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	data := encodeJPEG(t)

	uri, err := svc.UploadPicture(context.Background(), ada, "me.jpeg", "image/jpeg", bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(uri, ".jpeg"))

	saved, err := svc.Save(context.Background(), ada, Input{Name: "Ada", ProfilePicture: &uri})
	require.NoError(t, err)
	assert.Equal(t, uri, saved.ProfilePicture)
}

func TestSaveKeepsOrClearsPicture(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	picture := "https://cdn/p.png"

	_, err := svc.Save(ctx, ada, Input{Name: "Ada", ProfilePicture: &picture})
	require.NoError(t, err)

	kept, err := svc.Save(ctx, ada, Input{Name: "Ada L."})
	require.NoError(t, err)
	assert.Equal(t, picture, kept.ProfilePicture, "omitted picture keeps the stored one")

	blank := ""
	cleared, err := svc.Save(ctx, ada, Input{Name: "Ada L.", ProfilePicture: &blank})
	require.NoError(t, err)
	assert.Empty(t, cleared.ProfilePicture)

	stored, err := store.Profiles().Get(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, stored.ProfilePicture)
}

func TestUploadPictureRejectsBadInput(t *testing.T) {
	svc, _, objects, _ := newTestService(t)
	ctx := context.Background()
	data := encodePNG(t)

	_, err := svc.UploadPicture(ctx, ada, "doc.pdf", "application/pdf", bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.UploadPicture(ctx, ada, "big.png", "image/png", bytes.NewReader(data), MaxPictureBytes+1)
	assert.ErrorIs(t, err, models.ErrValidation)

	oversized := bytes.Repeat([]byte{0}, MaxPictureBytes+1)
	_, err = svc.UploadPicture(ctx, ada, "lie.png", "image/png", bytes.NewReader(oversized), 10)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.UploadPicture(ctx, ada, "fake.png", "image/png", strings.NewReader("hello, not an image"), 19)
	assert.ErrorIs(t, err, models.ErrValidation)

	assert.Empty(t, objects.Keys())
}

func TestUploadPictureStorageFailure(t *testing.T) {
	store := repositories.NewMemoryStore()
	svc := NewService(store.Profiles(), failingUploader{}, nil)
	data := encodePNG(t)

	_, err := svc.UploadPicture(context.Background(), ada, "me.png", "image/png", bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

func TestAdminOperations(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, ada, Input{Name: "Ada"})
	require.NoError(t, err)
	_, err = svc.Save(ctx, models.Actor{UserID: "2"}, Input{Name: "Bo", IsPublic: boolPtr(false)})
	require.NoError(t, err)
	require.NoError(t, store.Requests().Create(ctx, models.SwapRequest{ID: "r1", FromUserID: "1", ToUserID: "2", Status: models.StatusPending}))

	_, err = svc.Stats(ctx, models.AdminCapability{})
	assert.ErrorIs(t, err, models.ErrNotAuthorized)
	assert.ErrorIs(t, svc.AdminDelete(ctx, models.AdminCapability{}, "1"), models.ErrNotAuthorized)
	_, err = svc.AdminList(ctx, models.AdminCapability{})
	assert.ErrorIs(t, err, models.ErrNotAuthorized)

	capability, ok := admin.AdminCapability()
	require.True(t, ok)

	stats, err := svc.Stats(ctx, capability)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{TotalUsers: 2, TotalRequests: 1, PublicProfiles: 1}, stats)

	all, err := svc.AdminList(ctx, capability)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, svc.AdminDelete(ctx, capability, "1"))
	_, err = store.Requests().Get(ctx, "r1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, svc.AdminDelete(ctx, capability, "1"), models.ErrNotFound)
}
