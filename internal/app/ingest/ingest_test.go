package ingest

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-live/internal/common/logger"
	"restaurant-live/internal/domain"
	"restaurant-live/internal/realtime"
)

type recordChannel struct {
	mu     sync.Mutex
	frames []string
}

func (c *recordChannel) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, string(frame))
	return nil
}

func (c *recordChannel) recorded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func newDispatcher() (*realtime.Dispatcher, *recordChannel) {
	lg := logger.New("test")
	reg := realtime.NewRegistry(lg)
	ch := &recordChannel{}
	reg.RegisterAdmin("admin-1", ch)
	return realtime.NewDispatcher(reg, lg), ch
}

func TestApplyOrderCreated(t *testing.T) {
	disp, ch := newDispatcher()

	body := `{"type":"order.created","order":{"_id":"o1","status":"pending","totalPrice":12.5}}`
	require.NoError(t, Apply(disp, []byte(body)))

	frames := ch.recorded()
	require.Len(t, frames, 1)
	assert.True(t, strings.HasPrefix(frames[0], "event: new-order\n"))
	assert.Contains(t, frames[0], `"_id":"o1"`)
	assert.Equal(t, domain.StatusPending, disp.LastKnownStatus("o1"))
}

func TestApplyStatusChangedUsesRetainedStatus(t *testing.T) {
	disp, ch := newDispatcher()

	created := `{"type":"order.created","order":{"_id":"o1","status":"pending"}}`
	require.NoError(t, Apply(disp, []byte(created)))

	// Publisher did not track the previous status; the dispatcher
	// fills in its retained value.
	changed := `{"type":"order.status_changed","order_id":"o1","new_status":"accepted"}`
	require.NoError(t, Apply(disp, []byte(changed)))

	frames := ch.recorded()
	require.Len(t, frames, 2)
	assert.True(t, strings.HasPrefix(frames[1], "event: order-update\n"))
	assert.Contains(t, frames[1], `"oldStatus":"pending"`)
	assert.Contains(t, frames[1], `"newStatus":"accepted"`)
}

func TestApplyRejectsMalformedMessages(t *testing.T) {
	disp, _ := newDispatcher()

	cases := map[string]string{
		"not json":       `{{`,
		"unknown type":   `{"type":"order.exploded"}`,
		"missing id":     `{"type":"order.status_changed","new_status":"accepted"}`,
		"created w/o id": `{"type":"order.created","order":{}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Apply(disp, []byte(body)))
		})
	}
}

func TestApplyStatusChangedNotifiesUser(t *testing.T) {
	lg := logger.New("test")
	reg := realtime.NewRegistry(lg)
	userCh := &recordChannel{}
	reg.RegisterUser("u1", "c1", userCh)
	disp := realtime.NewDispatcher(reg, lg)

	body := `{"type":"order.status_changed","order_id":"o1","user_id":"u1","old_status":"pending","new_status":"accepted"}`
	require.NoError(t, Apply(disp, []byte(body)))

	frames := userCh.recorded()
	require.Len(t, frames, 1)
	assert.True(t, strings.HasPrefix(frames[0], "event: order-status-update\n"))
	assert.Contains(t, frames[0], `"userId":"u1"`)
}
