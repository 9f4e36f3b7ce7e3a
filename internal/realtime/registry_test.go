package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAdminReplacesSameID(t *testing.T) {
	r := NewRegistry(testLogger())
	ch1 := &recordChannel{}
	ch2 := &recordChannel{}

	r.RegisterAdmin("admin-1", ch1)
	r.RegisterAdmin("admin-1", ch2)

	conns := r.collectAdmins()
	require.Len(t, conns, 1)
	assert.Same(t, ch2, conns[0].ch.(*recordChannel), "latest channel wins")
	assert.True(t, r.IsActive("admin-1"))
}

func TestUserGroupDeletedWhenEmpty(t *testing.T) {
	r := NewRegistry(testLogger())
	r.RegisterUser("u1", "c1", &recordChannel{})
	r.RegisterUser("u1", "c2", &recordChannel{})

	r.UnregisterUser("u1", "c1")
	require.Len(t, r.collectUser("u1"), 1)

	r.UnregisterUser("u1", "c2")
	assert.Empty(t, r.collectUser("u1"))

	r.mu.Lock()
	_, exists := r.users["u1"]
	r.mu.Unlock()
	assert.False(t, exists, "empty group must be removed from the outer map")
}

func TestGuestGroupDeletedWhenEmpty(t *testing.T) {
	r := NewRegistry(testLogger())
	r.RegisterGuest("o1", "c1", &recordChannel{})
	r.UnregisterGuest("o1", "c1")

	r.mu.Lock()
	_, exists := r.guests["o1"]
	r.mu.Unlock()
	assert.False(t, exists)
}

func TestIsActive(t *testing.T) {
	r := NewRegistry(testLogger())
	assert.False(t, r.IsActive("nope"))

	r.RegisterAdmin("admin-1", &recordChannel{})
	assert.True(t, r.IsActive("admin-1"))

	r.UnregisterAdmin("admin-1")
	assert.False(t, r.IsActive("admin-1"))
}

func TestUnregisterUnknownIsNoOp(t *testing.T) {
	r := NewRegistry(testLogger())
	assert.NotPanics(t, func() {
		r.UnregisterAdmin("ghost")
		r.UnregisterUser("u1", "ghost")
		r.UnregisterGuest("o1", "ghost")
	})
}

func TestCollectSkipsNonActive(t *testing.T) {
	r := NewRegistry(testLogger())
	ch := &recordChannel{}
	r.RegisterAdmin("admin-1", ch)

	conns := r.collectAdmins()
	require.Len(t, conns, 1)
	r.markError(conns[0])

	assert.Empty(t, r.collectAdmins(), "errored connection must not receive pushes")
	assert.False(t, r.IsActive("admin-1"))
}
