// Package client implements the client side of the chat exchange: a single
// persistent duplex connection producing a typed event stream.
//
// The client deliberately carries no reconnection or backoff policy:
// retries are the caller's responsibility, and a reconnect begins a new
// session identity.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/fasthttp/websocket"

	"github.com/example/chat-exchange/domain/chat"
	"github.com/example/chat-exchange/protocol"
)

// ErrConnectionFailed is returned when the endpoint is unreachable.
var ErrConnectionFailed = errors.New("connection failed")

// ErrSessionClosed is returned for operations on a closed session.
var ErrSessionClosed = errors.New("session is closed")

// Options configure a connection.
type Options struct {
	// Token is an optional identity token presented at the handshake.
	Token string

	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
}

// Option mutates Options.
type Option func(*Options)

// WithToken presents an identity token at the handshake.
func WithToken(token string) Option {
	return func(o *Options) {
		o.Token = token
	}
}

// WithEventBuffer sets the Events channel capacity.
func WithEventBuffer(n int) Option {
	return func(o *Options) {
		o.EventBuffer = n
	}
}

// Client is one live session over a WebSocket transport. State moves
// connecting -> open -> closed and never back.
type Client struct {
	conn   *websocket.Conn
	events chan Event

	mu    sync.Mutex
	state chat.SessionState
	room  string
}

// Connect establishes the duplex connection. A dial failure wraps
// ErrConnectionFailed; asynchronous transport failures after a successful
// dial surface as a Disconnected event instead.
func Connect(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	options := Options{EventBuffer: 64}
	for _, opt := range opts {
		opt(&options)
	}
	if options.EventBuffer < 1 {
		options.EventBuffer = 1
	}

	url := endpoint
	if options.Token != "" {
		url = endpoint + "?token=" + options.Token
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %s (status %d)", ErrConnectionFailed, endpoint, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionFailed, endpoint, err)
	}
	drainBody(resp)

	c := &Client{
		conn:   conn,
		events: make(chan Event, options.EventBuffer),
		state:  chat.StateOpen,
	}

	c.events <- Connected{SessionOpen: true}
	go c.readLoop()

	return c, nil
}

// Events returns the connection's event stream. The channel is closed after
// a Disconnected event.
func (c *Client) Events() <-chan Event {
	return c.events
}

// State returns the current session state.
func (c *Client) State() chat.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Room returns the room this session last joined, if any.
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// Join asks the exchange to add this session to a room.
func (c *Client) Join(room string) error {
	if err := c.write(protocol.TypeJoinRoom, protocol.JoinRoomPayload{Room: room}); err != nil {
		return err
	}
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
	return nil
}

// Send relays a message to the current room. Fire-and-forget: the
// server-assigned id arrives later as an Acked event.
func (c *Client) Send(text string) error {
	c.mu.Lock()
	room := c.room
	c.mu.Unlock()
	return c.write(protocol.TypeSendMessage, protocol.SendMessagePayload{
		Text: text,
		Room: room,
	})
}

// Close tears the transport down. The read loop emits Disconnected and
// closes the event stream.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == chat.StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = chat.StateClosed
	c.mu.Unlock()

	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func (c *Client) write(eventType string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != chat.StateOpen {
		return ErrSessionClosed
	}

	frame, err := protocol.Encode(eventType, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write %s: %w", eventType, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.events)

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasClosed := c.state == chat.StateClosed
			c.state = chat.StateClosed
			c.mu.Unlock()

			if wasClosed || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.events <- Disconnected{}
			} else {
				c.events <- Disconnected{Err: err}
			}
			return
		}

		event, err := decodeEvent(frame)
		if err != nil {
			c.events <- ProtocolError{Reason: err.Error()}
			continue
		}
		c.events <- event
	}
}

// decodeEvent maps a server frame onto the event union.
func decodeEvent(frame []byte) (Event, error) {
	env, err := protocol.Decode(frame)
	if err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch env.Type {
	case protocol.TypeReceiveMessage:
		var msg chat.Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("malformed receiveMessage payload: %w", err)
		}
		return MessageReceived{Message: msg}, nil

	case protocol.TypeUserJoined:
		var p protocol.PresencePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed userJoined payload: %w", err)
		}
		return UserJoined{UserID: p.UserID, Notice: p.Message}, nil

	case protocol.TypeUserLeft:
		var p protocol.PresencePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed userLeft payload: %w", err)
		}
		return UserLeft{UserID: p.UserID, Notice: p.Message}, nil

	case protocol.TypeMessageSent:
		var p protocol.AckPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed messageSent payload: %w", err)
		}
		return Acked{MessageID: p.ID}, nil

	case protocol.TypeError:
		return ProtocolError{Reason: env.Error}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}
}

func drainBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}
