package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-live/internal/domain"
)

type fakeStore struct {
	recent []domain.Order
	byUser []domain.Order
	byID   *domain.Order
	err    error
}

func (f *fakeStore) RecentOrders(context.Context, time.Time) ([]domain.Order, error) {
	return f.recent, f.err
}

func (f *fakeStore) OrdersByUser(context.Context, string, []domain.OrderStatus) ([]domain.Order, error) {
	return f.byUser, f.err
}

func (f *fakeStore) OrderByID(context.Context, string) (*domain.Order, error) {
	return f.byID, f.err
}

func orderAt(id string, status domain.OrderStatus, createdAt time.Time) domain.Order {
	return domain.Order{ID: id, Status: status, CreatedAt: createdAt, UpdatedAt: createdAt}
}

func TestReplayUserFiltersAndSorts(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{byUser: []domain.Order{
		orderAt("o1", domain.StatusPending, now.Add(-3*time.Hour)),
		orderAt("o2", domain.StatusCompleted, now.Add(-2*time.Hour)),
		orderAt("o3", domain.StatusAccepted, now.Add(-1*time.Hour)),
	}}
	s := NewSnapshotProvider(store, 24*time.Hour, testLogger())
	ch := &recordChannel{}

	s.ReplayUser(context.Background(), "u1", ch)

	frames := ch.recorded()
	require.Len(t, frames, 2, "completed order must be omitted")

	var first, second domain.OrderStatusPayload
	decodeFrameData(t, frames[0], &first)
	decodeFrameData(t, frames[1], &second)
	assert.Equal(t, "o3", first.OrderID, "newest first")
	assert.Equal(t, "o1", second.OrderID)
	assert.Empty(t, first.OldStatus, "snapshot events carry current state, not a transition")
	assert.Equal(t, domain.StatusAccepted, first.NewStatus)
	assert.Equal(t, "u1", first.UserID)
}

func TestReplayAdminBoundsWindow(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{recent: []domain.Order{
		orderAt("old", domain.StatusPending, now.Add(-48*time.Hour)),
		orderAt("fresh", domain.StatusPending, now.Add(-1*time.Hour)),
	}}
	s := NewSnapshotProvider(store, 24*time.Hour, testLogger())
	ch := &recordChannel{}

	s.ReplayAdmin(context.Background(), ch)

	frames := ch.recorded()
	require.Len(t, frames, 1, "orders older than the window never replay, regardless of store contents")
	var payload domain.NewOrderPayload
	decodeFrameData(t, frames[0], &payload)
	assert.Equal(t, "fresh", payload.Order.ID)
}

func TestReplayAdminNewestFirst(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{recent: []domain.Order{
		orderAt("a", domain.StatusPending, now.Add(-3*time.Hour)),
		orderAt("b", domain.StatusPending, now.Add(-1*time.Hour)),
		orderAt("c", domain.StatusPending, now.Add(-2*time.Hour)),
	}}
	s := NewSnapshotProvider(store, 24*time.Hour, testLogger())
	ch := &recordChannel{}

	s.ReplayAdmin(context.Background(), ch)

	frames := ch.recorded()
	require.Len(t, frames, 3)
	order := make([]string, 0, 3)
	for _, f := range frames {
		var p domain.NewOrderPayload
		decodeFrameData(t, f, &p)
		order = append(order, p.Order.ID)
	}
	assert.Equal(t, []string{"b", "c", "a"}, order)
}

func TestReplaySwallowsStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("store down")}
	s := NewSnapshotProvider(store, 24*time.Hour, testLogger())
	ch := &recordChannel{}

	assert.NotPanics(t, func() {
		s.ReplayAdmin(context.Background(), ch)
		s.ReplayUser(context.Background(), "u1", ch)
		s.ReplayGuest(context.Background(), "o1", ch)
	})
	assert.Empty(t, ch.recorded(), "no partial replay on store failure")
}

func TestReplayGuest(t *testing.T) {
	now := time.Now().UTC()
	o := orderAt("o1", domain.StatusPreparing, now)
	store := &fakeStore{byID: &o}
	s := NewSnapshotProvider(store, 24*time.Hour, testLogger())
	ch := &recordChannel{}

	s.ReplayGuest(context.Background(), "o1", ch)

	frames := ch.recorded()
	require.Len(t, frames, 1)
	var payload domain.OrderStatusPayload
	decodeFrameData(t, frames[0], &payload)
	assert.Equal(t, "o1", payload.OrderID)
	assert.Equal(t, domain.StatusPreparing, payload.NewStatus)
	assert.Empty(t, payload.UserID)
}

func TestReplayGuestUnknownOrder(t *testing.T) {
	s := NewSnapshotProvider(&fakeStore{}, 24*time.Hour, testLogger())
	ch := &recordChannel{}
	s.ReplayGuest(context.Background(), "nope", ch)
	assert.Empty(t, ch.recorded())
}

func TestReplayStopsWhenChannelDies(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{recent: []domain.Order{
		orderAt("a", domain.StatusPending, now),
		orderAt("b", domain.StatusPending, now.Add(-time.Minute)),
	}}
	s := NewSnapshotProvider(store, 24*time.Hour, testLogger())
	ch := &recordChannel{fail: true}

	s.ReplayAdmin(context.Background(), ch)
	assert.Equal(t, 1, ch.sendAttempts(), "replay stops on the first dead write")
}
