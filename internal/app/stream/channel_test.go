package stream

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-live/internal/common/logger"
	"restaurant-live/internal/domain"
	"restaurant-live/internal/realtime"
)

func TestChannelRejectsSendAfterClose(t *testing.T) {
	rec := httptest.NewRecorder()
	ch := newSSEChannel(rec, rec)

	require.NoError(t, ch.Send(realtime.Keepalive))
	ch.close()

	assert.ErrorIs(t, ch.Send([]byte("event: test\ndata: {}\n\n")), errChannelClosed)
	assert.Equal(t, string(realtime.Keepalive), rec.Body.String(),
		"nothing reaches the writer once the channel is closed")
}

func TestChannelCloseIsIdempotent(t *testing.T) {
	rec := httptest.NewRecorder()
	ch := newSSEChannel(rec, rec)
	ch.close()
	assert.NotPanics(t, ch.close)
	assert.Error(t, ch.Send(realtime.Keepalive))
}

// A fan-out can collect a connection just before its handler tears
// down. The late Send must fail cleanly and get the connection pruned
// instead of writing to a response that is already finished.
func TestBroadcastAfterTeardownPrunesConnection(t *testing.T) {
	lg := logger.New("test")
	reg := realtime.NewRegistry(lg)
	disp := realtime.NewDispatcher(reg, lg)

	rec := httptest.NewRecorder()
	ch := newSSEChannel(rec, rec)
	reg.RegisterAdmin("a1", ch)

	// Handler finished; the registry entry is still visible to a
	// concurrent fan-out.
	ch.close()

	disp.BroadcastToAdmins(domain.EventTest, map[string]string{"ping": "pong"})

	assert.False(t, reg.IsActive("a1"))
	assert.Empty(t, rec.Body.String())
}
