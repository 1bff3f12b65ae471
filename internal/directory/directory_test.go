package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/realtime"
	"github.com/skillswap/backend/internal/repositories"
)

func seededStore(t *testing.T) *repositories.MemoryStore {
	t.Helper()
	store := repositories.NewMemoryStore()
	profiles := store.Profiles()
	for _, p := range []models.Profile{
		{UserID: "1", Name: "alice", Location: "Lisbon", SkillsOffered: []string{"Guitar"}, Availability: []string{"Weekend Mornings"}, IsPublic: true},
		{UserID: "2", Name: "Bob", Location: "Berlin", SkillsWanted: []string{"Python"}, Availability: []string{"Weekday Evenings"}, IsPublic: true},
		{UserID: "3", Name: "Carol", Location: "Paris", SkillsOffered: []string{"French"}, IsPublic: false},
		{UserID: "4", Name: "Alice", Location: "Oslo", SkillsOffered: []string{"Go"}, Availability: []string{"Weekday Mornings"}, IsPublic: true},
	} {
		_, err := profiles.Upsert(context.Background(), p)
		require.NoError(t, err)
	}
	return store
}

func ids(profiles []models.Profile) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.UserID)
	}
	return out
}

func TestIsVisible(t *testing.T) {
	cases := []struct {
		public bool
		owner  string
		actor  string
		want   bool
	}{
		{true, "1", "2", true},
		{true, "1", "1", false},
		{false, "1", "2", false},
		{false, "1", "1", false},
	}
	for _, tc := range cases {
		p := models.Profile{UserID: tc.owner, IsPublic: tc.public}
		assert.Equal(t, tc.want, IsVisible(p, tc.actor), "%+v", tc)
	}
}

func TestListVisibleExcludesSelfAndPrivateAndIsStable(t *testing.T) {
	dir := New(seededStore(t).Profiles())

	got, err := dir.ListVisible(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "4"}, ids(got))

	again, err := dir.ListVisible(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, ids(got), ids(again))

	for _, actor := range []string{"1", "2", "4", "99"} {
		visible, err := dir.ListVisible(context.Background(), actor)
		require.NoError(t, err)
		assert.NotContains(t, ids(visible), "3", "private profile leaked to %s", actor)
		assert.NotContains(t, ids(visible), actor)
	}
}

func TestListVisibleReportsUpstreamFailure(t *testing.T) {
	store := seededStore(t)
	store.FailWith(errors.New("connection refused"))

	_, err := New(store.Profiles()).ListVisible(context.Background(), "1")
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

func TestSearch(t *testing.T) {
	profiles := []models.Profile{
		{UserID: "1", Name: "Alice"},
		{UserID: "2", Name: "Bob", Location: "Alicante"},
		{UserID: "3", Name: "Cy", SkillsWanted: []string{"Watercolour"}},
	}

	assert.Equal(t, profiles, Search(profiles, ""))
	assert.Equal(t, profiles, Search(profiles, "   "))
	assert.Equal(t, []string{"1"}, ids(Search(profiles[:1], "ALICE")))
	assert.Equal(t, []string{"1", "2"}, ids(Search(profiles, "alic")))
	assert.Equal(t, []string{"3"}, ids(Search(profiles, " colour ")))
	assert.Empty(t, Search(profiles, "zzz"))
}

func TestFilterByAvailability(t *testing.T) {
	profiles := []models.Profile{
		{UserID: "1", Availability: []string{"Weekend Mornings"}},
		{UserID: "2", Availability: []string{"Weekday Evenings", "Weekend Afternoons"}},
		{UserID: "3"},
	}

	assert.Equal(t, profiles, FilterByAvailability(profiles, "all"))
	assert.Equal(t, profiles, FilterByAvailability(profiles, "ALL"))
	assert.Equal(t, profiles, FilterByAvailability(profiles, ""))
	assert.Equal(t, []string{"1", "2"}, ids(FilterByAvailability(profiles, "weekend")))
	assert.Equal(t, []string{"2"}, ids(FilterByAvailability(profiles, "Weekday Evenings")))
}

func TestBrowseComposesFilters(t *testing.T) {
	dir := New(seededStore(t).Profiles())

	got, err := dir.Browse(context.Background(), "2", "alice", "weekday")
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, ids(got))
}

func TestPage(t *testing.T) {
	profiles := make([]models.Profile, 25)
	for i := range profiles {
		profiles[i].UserID = string(rune('a' + i))
	}

	page, total := Page(profiles, 0, 0)
	assert.Len(t, page, DefaultPerPage)
	assert.Equal(t, 3, total)

	page, total = Page(profiles, 3, 10)
	assert.Len(t, page, 5)
	assert.Equal(t, 3, total)

	page, _ = Page(profiles, 9, 10)
	assert.Empty(t, page)

	_, total = Page(profiles, 1, 1000)
	assert.Equal(t, 1, total)
}

func TestWatchRefetchesOnEveryChange(t *testing.T) {
	store := seededStore(t)
	dir := New(store.Profiles())
	feed := realtime.NewMemoryFeed()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		results [][]string
	)
	done := make(chan error, 1)
	go func() {
		done <- dir.Watch(ctx, feed, "2", "", "all", func(p []models.Profile) {
			mu.Lock()
			results = append(results, ids(p))
			mu.Unlock()
		})
	}()

	snapshot := func() [][]string {
		mu.Lock()
		defer mu.Unlock()
		return append([][]string(nil), results...)
	}

	require.Eventually(t, func() bool { return len(snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return feed.Subscribers(realtime.TableProfiles) == 1 }, time.Second, 5*time.Millisecond)

	_, err := store.Profiles().Upsert(context.Background(), models.Profile{UserID: "3", Name: "Carol", IsPublic: true})
	require.NoError(t, err)
	require.NoError(t, feed.Publish(context.Background(), realtime.NewChange(realtime.TableProfiles, realtime.OpUpdate, "3")))

	require.Eventually(t, func() bool {
		r := snapshot()
		return len(r) >= 2 && assert.ObjectsAreEqual([]string{"1", "4", "3"}, r[len(r)-1])
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
