package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/metrics"
)

// errBandwidth reports that a message was withheld because the client
// exhausted its byte budget for the current second.
var errBandwidth = errors.New("bandwidth limit exceeded")

const writeTimeout = 30 * time.Second

// client manages a single SSE connection's write operations.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger
	now     func() time.Time

	// bytes per second; zero disables the budget
	limit       int
	windowStart time.Time
	windowBytes int

	messagesSent int64
	bytesSent    int64
}

// sendJSON marshals v as JSON and sends it as an SSE "data:" message.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.sendRaw(data)
}

// sendRaw sends pre-marshalled JSON as an SSE "data:" message. It returns
// errBandwidth without writing when the message would overrun the
// per-second budget.
func (c *client) sendRaw(data []byte) error {
	size := len(data) + len("data: \n\n")
	if !c.reserve(size) {
		return errBandwidth
	}

	c.extendDeadline()
	n, err := fmt.Fprintf(c.w, "data: %s\n\n", data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	c.flusher.Flush()
	c.messagesSent++
	c.bytesSent += int64(n)
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(n))
	return nil
}

// sendKeepalive sends an SSE comment line. Keepalives bypass the budget.
func (c *client) sendKeepalive() error {
	c.extendDeadline()
	n, err := fmt.Fprint(c.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}

	c.flusher.Flush()
	c.bytesSent += int64(n)
	metrics.AddStreamBytes(int64(n))
	return nil
}

// reserve accounts size bytes against the current one-second window.
// A single message larger than the limit is still allowed into an empty
// window so that big batches are never starved outright.
func (c *client) reserve(size int) bool {
	if c.limit <= 0 {
		return true
	}
	now := c.now()
	if now.Sub(c.windowStart) >= time.Second {
		c.windowStart = now
		c.windowBytes = 0
	}
	if c.windowBytes > 0 && c.windowBytes+size > c.limit {
		return false
	}
	c.windowBytes += size
	return true
}

func (c *client) extendDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
}
