// Package detectorws implements SignalStream against a detector gateway
// that pushes signal events over WebSocket.
package detectorws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"FlowRadar/internal/domain/models"
	drepo "FlowRadar/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client is a SignalStream backed by a detector gateway WebSocket.
type Client struct {
	token          string
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	symbols   []string
	connected bool
}

// New creates a detector gateway stream.
func New(token, websocketURL string, reconnectDelay, pingInterval time.Duration) drepo.SignalStream {
	return &Client{
		token:          token,
		websocketURL:   websocketURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := c.websocketURL
	if c.token != "" {
		u = fmt.Sprintf("%s?token=%s", c.websocketURL, c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("detectorws connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("detectorws: connected")
	return nil
}

// Subscribe asks the gateway for the given symbols' signal feeds.
func (c *Client) Subscribe(ctx context.Context, symbols []string) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("detectorws not connected")
	}
	c.symbols = symbols
	for _, s := range symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		log.Printf("detectorws: subscribed %s", s)
	}
	return nil
}

type gatewayFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Read streams signal events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.SignalEvent, <-chan error) {
	events := make(chan *models.SignalEvent, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("detectorws conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("detectorws read: %w", err)
					return
				}
				var frame gatewayFrame
				if err := json.Unmarshal(b, &frame); err != nil {
					// ignore non-signal frames
					continue
				}
				if frame.Type != "signal" {
					continue
				}
				var ev models.SignalEvent
				if err := json.Unmarshal(frame.Data, &ev); err != nil {
					continue
				}
				select {
				case events <- &ev:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return events, errs
}

// Reconnect closes and reconnects, restoring subscriptions.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx, c.symbols)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
