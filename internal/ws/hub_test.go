package ws

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestClient(userID string) *Client {
	// No socket needed: the hub only touches the send channel.
	return NewClient(userID, nil)
}

// drain decodes every event currently buffered on the client.
func drain(t *testing.T, c *Client) []Event {
	t.Helper()
	var events []Event
	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return events
			}
			var ev struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			require.NoError(t, json.Unmarshal(data, &ev))
			events = append(events, Event{Event: ev.Event, Data: ev.Data})
		default:
			return events
		}
	}
}

func lastPresence(t *testing.T, c *Client) []string {
	t.Helper()
	events := drain(t, c)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, EventPresenceChanged, last.Event)
	var online []string
	require.NoError(t, json.Unmarshal(last.Data.(json.RawMessage), &online))
	return online
}

func Test_Register_Adds_To_Online_Set_And_Broadcasts(t *testing.T) {
	req := require.New(t)
	hub := NewHub(zerolog.Nop())

	alice := newTestClient("alice")
	hub.Register(alice)
	req.Equal([]string{"alice"}, hub.OnlineUserIDs())
	req.Equal([]string{"alice"}, lastPresence(t, alice))

	bob := newTestClient("bob")
	hub.Register(bob)
	req.Equal([]string{"alice", "bob"}, hub.OnlineUserIDs())

	// Everyone gets the full set, not a diff.
	req.Equal([]string{"alice", "bob"}, lastPresence(t, alice))
	req.Equal([]string{"alice", "bob"}, lastPresence(t, bob))
}

func Test_Unregister_Removes_And_Broadcasts(t *testing.T) {
	req := require.New(t)
	hub := NewHub(zerolog.Nop())

	alice := newTestClient("alice")
	bob := newTestClient("bob")
	hub.Register(alice)
	hub.Register(bob)
	drain(t, alice)

	hub.Unregister(bob)
	req.Equal([]string{"alice"}, hub.OnlineUserIDs())
	req.Equal([]string{"alice"}, lastPresence(t, alice))
}

func Test_Stale_Unregister_Does_Not_Remove_Newer_Binding(t *testing.T) {
	req := require.New(t)
	hub := NewHub(zerolog.Nop())

	stale := newTestClient("alice")
	hub.Register(stale)

	fresh := newTestClient("alice")
	hub.Register(fresh)

	// The superseded client's channel is closed so its write pump exits.
	drain(t, stale)
	select {
	case _, ok := <-stale.Send:
		req.False(ok, "superseded send channel should be closed")
	default:
		req.Fail("superseded send channel should be closed")
	}

	// The stale connection's disconnect arrives late: no-op.
	hub.Unregister(stale)
	req.Equal([]string{"alice"}, hub.OnlineUserIDs())

	current, ok := hub.Lookup("alice")
	req.True(ok)
	req.Same(fresh, current)

	hub.Unregister(fresh)
	req.Empty(hub.OnlineUserIDs())
}

func Test_Push_To_Offline_User_Reports_False(t *testing.T) {
	req := require.New(t)
	hub := NewHub(zerolog.Nop())

	req.False(hub.Push("nobody", PresenceChanged(nil)))

	alice := newTestClient("alice")
	hub.Register(alice)
	drain(t, alice)
	req.True(hub.Push("alice", Event{Event: EventNewMessage, Data: "payload"}))

	events := drain(t, alice)
	req.Len(events, 1)
	req.Equal(EventNewMessage, events[0].Event)
}
