package core

import "sync"

// Client is one live connection as seen by the core layer. UserID is the
// durable identity that survives reconnects; ConnID is fresh per connection.
type Client struct {
	ConnID      string
	UserID      string
	DisplayName string
	Rating      int
	Events      chan *Event

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a client with an initialized event channel.
func NewClient(connID, userID, displayName string, rating int) *Client {
	return &Client{
		ConnID:      connID,
		UserID:      userID,
		DisplayName: displayName,
		Rating:      rating,
		Events:      make(chan *Event, 64),
		done:        make(chan struct{}),
	}
}

// Close marks the client as dead. The transport's write loop observes Done
// and tears the socket down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed when the client has been superseded or shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// send delivers an event without blocking the room actor. Slow consumers drop
// events; a reconnecting client recovers via a fresh snapshot.
func (c *Client) send(ev *Event) {
	select {
	case <-c.done:
	case c.Events <- ev:
	default:
	}
}
