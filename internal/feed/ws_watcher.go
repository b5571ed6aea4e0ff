package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WatcherConfig configures WebSocket watcher behavior.
type WatcherConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// BufferSize caps how many creation events are held between drains.
	// When full, the oldest event is evicted.
	BufferSize int
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		BufferSize:        512,
	}
}

// subscribePayload asks the stream for token creation events.
var subscribePayload = map[string]string{"method": "subscribeNewToken"}

// wsTokenEvent is one creation event from the stream. Frames without a mint
// (subscription acks, heartbeats) are ignored.
type wsTokenEvent struct {
	Mint   string `json:"mint"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Watcher holds a subscription to the pump.fun token-creation stream and
// buffers events between scan cycles. Creation events carry no liquidity,
// so drained tokens establish first sightings and leave the numbers to the
// polled listing.
type Watcher struct {
	endpoint string
	config   WatcherConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	buf     []RawToken
	bufMu   sync.Mutex
	dropped atomic.Uint64

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewWatcher connects to the stream, subscribes, and starts reading.
func NewWatcher(ctx context.Context, endpoint string, config *WatcherConfig) (*Watcher, error) {
	cfg := DefaultWatcherConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultWatcherConfig().BufferSize
	}

	w := &Watcher{
		endpoint: endpoint,
		config:   cfg,
		done:     make(chan struct{}),
	}

	if err := w.connect(ctx); err != nil {
		return nil, err
	}

	w.wg.Add(1)
	go w.readLoop()

	w.wg.Add(1)
	go w.pingLoop()

	return w, nil
}

// connect establishes the WebSocket connection and sends the subscription.
func (w *Watcher) connect(ctx context.Context) error {
	w.connMu.Lock()
	defer w.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	if err := conn.WriteJSON(subscribePayload); err != nil {
		conn.Close()
		return fmt.Errorf("write subscribe: %w", err)
	}

	w.conn = conn
	return nil
}

// Drain returns all buffered creation events and clears the buffer.
func (w *Watcher) Drain() []RawToken {
	w.bufMu.Lock()
	defer w.bufMu.Unlock()

	out := w.buf
	w.buf = nil
	return out
}

// Dropped returns how many events were evicted from a full buffer.
func (w *Watcher) Dropped() uint64 {
	return w.dropped.Load()
}

// Close closes the WebSocket connection.
func (w *Watcher) Close() error {
	if w.closed.Swap(true) {
		return nil // Already closed
	}

	close(w.done)

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.conn.Close()
	}
	w.connMu.Unlock()

	w.wg.Wait()
	return nil
}

// readLoop reads messages and buffers creation events.
func (w *Watcher) readLoop() {
	defer w.wg.Done()

	reconnectDelay := w.config.ReconnectDelay

	for !w.closed.Load() {
		w.connMu.Lock()
		conn := w.conn
		w.connMu.Unlock()

		if conn == nil {
			select {
			case <-w.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if w.closed.Load() {
				return
			}

			// Connection error - attempt reconnect with exponential backoff
			if !w.reconnecting.Swap(true) {
				go w.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > w.config.MaxReconnectDelay {
				reconnectDelay = w.config.MaxReconnectDelay
			}

			select {
			case <-w.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = w.config.ReconnectDelay

		w.handleMessage(message, time.Now().UTC())
	}
}

// reconnect waits out the delay, then dials and resubscribes.
func (w *Watcher) reconnect(delay time.Duration) {
	defer w.reconnecting.Store(false)

	if w.closed.Load() {
		return
	}

	select {
	case <-w.done:
		return
	case <-time.After(delay):
	}

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Failed reconnects retry on the next read error
	w.connect(ctx)
}

// handleMessage buffers one creation event, stamping the arrival time as the
// creation time. Events are emitted at creation, so the stamp is accurate to
// delivery latency.
func (w *Watcher) handleMessage(message []byte, receivedAt time.Time) {
	var event wsTokenEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return
	}
	if event.Mint == "" {
		return
	}

	createdAt, err := json.Marshal(receivedAt.Format(time.RFC3339Nano))
	if err != nil {
		return
	}

	raw := RawToken{
		TokenAddress: event.Mint,
		Name:         event.Name,
		Symbol:       event.Symbol,
		CreatedAt:    createdAt,
	}

	w.bufMu.Lock()
	if len(w.buf) >= w.config.BufferSize {
		w.buf = w.buf[1:]
		w.dropped.Add(1)
	}
	w.buf = append(w.buf, raw)
	w.bufMu.Unlock()
}

// pingLoop sends periodic ping frames to keep connection alive.
func (w *Watcher) pingLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.connMu.Lock()
			if w.conn != nil {
				w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
				if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			w.connMu.Unlock()
		}
	}
}
