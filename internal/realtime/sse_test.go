package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame(t *testing.T) {
	b, err := Frame("test", map[string]string{"hello": "world"})
	require.NoError(t, err)
	assert.Equal(t, "event: test\ndata: {\"hello\":\"world\"}\n\n", string(b))
}

func TestFrameMarshalError(t *testing.T) {
	_, err := Frame("test", func() {})
	assert.Error(t, err)
}

func TestKeepaliveIsComment(t *testing.T) {
	assert.Equal(t, ": keepalive\n\n", string(Keepalive))
}
