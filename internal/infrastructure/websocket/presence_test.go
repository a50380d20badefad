package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceTracksConnectionsPerUser(t *testing.T) {
	p := NewPresence()

	assert.False(t, p.IsOnline("user-a"))

	p.Register("user-a", "conn-1")
	p.Register("user-a", "conn-2")
	p.Register("user-b", "conn-3")

	assert.True(t, p.IsOnline("user-a"))
	assert.ElementsMatch(t, []string{"user-a", "user-b"}, p.ListActive())

	p.Unregister("user-a", "conn-1")
	assert.True(t, p.IsOnline("user-a"), "one connection still open")

	p.Unregister("user-a", "conn-2")
	assert.False(t, p.IsOnline("user-a"))
	assert.ElementsMatch(t, []string{"user-b"}, p.ListActive())
}

func TestPresenceUnregisterUnknownIsHarmless(t *testing.T) {
	p := NewPresence()

	p.Unregister("ghost", "conn-x")
	assert.False(t, p.IsOnline("ghost"))
}
