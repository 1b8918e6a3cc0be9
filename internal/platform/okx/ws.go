package okx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okquant/costsim/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// readWait is the time allowed between messages from the peer; the
	// ping cadence keeps the connection inside it.
	readWait = 40 * time.Second

	// pingPeriod sends the OKX application-level "ping" at this interval.
	// The server closes connections idle for 30 seconds.
	pingPeriod = 25 * time.Second

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// BookUpdateHandler is called for every book snapshot or delta received
// on the "books" channel.
type BookUpdateHandler func(domain.BookUpdate)

// WSClient is a WebSocket client for the OKX public market-data feed.
// It manages the connection lifecycle, subscriptions, and dispatches
// messages to registered handlers.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// Subscriptions to restore on reconnect.
	subscriptions []SubscriptionArg

	// pingStop tells the current connection's ping loop to exit; it is
	// closed and replaced on every (re)connect so the connection never
	// has two writers.
	pingStop chan struct{}

	// Handlers
	bookHandlers []BookUpdateHandler
	handlerMu    sync.RWMutex

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a new WebSocket client for the given endpoint,
// e.g. "wss://ws.okx.com:8443/ws/v5/public".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("okx/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("okx/ws: connect: %w", err)
	}

	w.conn = conn
	w.conn.SetReadDeadline(time.Now().Add(readWait))

	// Stop the previous connection's ping loop before starting a new
	// one; gorilla conns allow only one concurrent writer.
	if w.pingStop != nil {
		close(w.pingStop)
	}
	w.pingStop = make(chan struct{})

	go w.readLoop(conn)
	go w.pingLoop(conn, w.pingStop)

	// Restore any previous subscriptions after reconnect.
	if len(w.subscriptions) > 0 {
		cmd := WSCommand{Op: "subscribe", Args: w.subscriptions}
		if err := w.sendCommand(cmd); err != nil {
			return fmt.Errorf("okx/ws: restore subscriptions: %w", err)
		}
	}

	return nil
}

// SubscribeBooks subscribes to the "books" channel for the given
// instrument IDs.
func (w *WSClient) SubscribeBooks(ctx context.Context, instIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("okx/ws: not connected")
	}

	args := make([]SubscriptionArg, 0, len(instIDs))
	for _, id := range instIDs {
		args = append(args, SubscriptionArg{Channel: "books", InstID: id})
	}

	if err := w.sendCommand(WSCommand{Op: "subscribe", Args: args}); err != nil {
		return fmt.Errorf("okx/ws: subscribe books: %w", err)
	}

	// Track subscriptions for reconnection.
	w.subscriptions = append(w.subscriptions, args...)
	return nil
}

// UnsubscribeBooks unsubscribes the given instrument IDs from the
// "books" channel.
func (w *WSClient) UnsubscribeBooks(ctx context.Context, instIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("okx/ws: not connected")
	}

	args := make([]SubscriptionArg, 0, len(instIDs))
	for _, id := range instIDs {
		args = append(args, SubscriptionArg{Channel: "books", InstID: id})
	}
	if err := w.sendCommand(WSCommand{Op: "unsubscribe", Args: args}); err != nil {
		return fmt.Errorf("okx/ws: unsubscribe books: %w", err)
	}

	drop := make(map[string]struct{}, len(instIDs))
	for _, id := range instIDs {
		drop[id] = struct{}{}
	}
	filtered := w.subscriptions[:0]
	for _, sub := range w.subscriptions {
		if _, found := drop[sub.InstID]; !found {
			filtered = append(filtered, sub)
		}
	}
	w.subscriptions = filtered

	return nil
}

// Close shuts down the WebSocket connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		// Send a close message to the server.
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// OnBookUpdate registers a handler that is called for every book
// snapshot or delta received on the "books" channel.
func (w *WSClient) OnBookUpdate(handler BookUpdateHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.bookHandlers = append(w.bookHandlers, handler)
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// sendCommand sends a JSON command to the WebSocket. Caller must hold w.mu.
func (w *WSClient) sendCommand(cmd WSCommand) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads messages from its connection and
// dispatches them to the appropriate handlers. It runs in its own
// goroutine. On disconnect, it attempts to reconnect with exponential
// backoff; the reconnect starts fresh loops for the new connection.
func (w *WSClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			// Check if we've been shut down.
			select {
			case <-w.done:
				return
			default:
			}

			w.reconnect()
			return
		}

		conn.SetReadDeadline(time.Now().Add(readWait))
		w.handleMessage(message)
	}
}

// pingLoop sends the application-level "ping" the OKX gateway expects.
// It is bound to one connection and exits when stop is closed on
// reconnect.
func (w *WSClient) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-stop:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw WebSocket message and routes it to the
// appropriate handler.
func (w *WSClient) handleMessage(raw []byte) {
	if bytes.Equal(raw, []byte("pong")) {
		return
	}

	var envelope WSEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return // Silently drop unparseable messages.
	}

	// Event acknowledgements carry no data.
	if envelope.Event != "" {
		return
	}

	if envelope.Arg.Channel == "books" {
		var book BookMessage
		if err := json.Unmarshal(raw, &book); err != nil {
			return
		}
		updates := book.ToDomainUpdates()

		w.handlerMu.RLock()
		handlers := w.bookHandlers
		w.handlerMu.RUnlock()

		for _, upd := range updates {
			for _, h := range handlers {
				h(upd)
			}
		}
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. It blocks until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		// Exponential backoff.
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
