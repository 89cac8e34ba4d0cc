package bridge

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

const (
	sendBuffer     = 64
	writeWait      = 10 * time.Second
	readWait       = 5 * time.Minute
	maxMessageSize = 64 << 10
)

// client is one shell connection. Writes go through a single pump
// goroutine.
type client struct {
	id        string
	conn      *websocket.Conn
	send      chan interface{}
	done      chan struct{}
	closeOnce sync.Once
	log       zerolog.Logger
}

func newClient(id string, conn *websocket.Conn, log zerolog.Logger) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan interface{}, sendBuffer),
		done: make(chan struct{}),
		log:  log.With().Str("conn_id", id).Logger(),
	}
}

// enqueue queues v for the shell. A shell that stops reading is dropped
// rather than stalling the session.
func (c *client) enqueue(v interface{}) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- v:
		return true
	case <-c.done:
		return false
	default:
		c.log.Warn().Msg("Shell send buffer full, dropping connection")
		c.close()
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case v := <-c.send:
			if err := writeTyped(c.conn, v); err != nil {
				c.log.Debug().Err(err).Msg("Write failed")
				c.close()
				return
			}
		}
	}
}

// fail sends an error event to the shell.
func (c *client) fail(code response.ErrCode, detail string) {
	msg := ErrorMessage{Event: EventError, Kind: string(code), Error: response.GetMessage(code)}
	if detail != "" {
		msg.Error = detail
	}
	c.enqueue(msg)
}

// decode parses and validates raw into v, reporting problems to the shell.
func (c *client) decode(raw []byte, v interface{}) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		c.fail(response.ErrInvalidPayload, "")
		return false
	}
	if err := validator.Struct(v); err != nil {
		c.fail(response.ErrValidation, err.Error())
		return false
	}
	return true
}

// writeTyped sends a strongly-typed payload with a write deadline.
func writeTyped(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// readMessage reads one frame with a read deadline.
func readMessage(conn *websocket.Conn) ([]byte, error) {
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	_, raw, err := conn.ReadMessage()
	return raw, err
}
