package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"Confluence/internal/domain/models"
	drepo "Confluence/internal/domain/repository"
	"Confluence/internal/services/features"

	"github.com/gorilla/websocket"
)

// Client implements a SnapshotStream backed by the market-data provider's
// WebSocket feed. It delivers pre-computed indicator bundles; indicator
// computation stays on the provider side, with features.Backfill filling
// regime-critical gaps from the close series.
type Client struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	loc            *time.Location

	// mu guards conn and connected: Reconnect and Close swap the
	// connection while the read and ping goroutines use it.
	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
}

// New creates a snapshot stream client. loc is the exchange location used
// to resolve session phases when the feed omits one.
func New(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, loc *time.Location) drepo.SnapshotStream {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		loc:            loc,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	log.Printf("feed: connected")
	return nil
}

// current returns the live connection, or nil when disconnected.
func (c *Client) current() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return nil
	}
	return c.conn
}

// Subscribe subscribes to configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	conn := c.current()
	if conn == nil {
		return fmt.Errorf("feed not connected")
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		log.Printf("feed: subscribed %s", s)
	}
	return nil
}

type wireGap struct {
	PrevClose float64 `json:"prev_close"`
	OpenPrice float64 `json:"open_price"`
	GapPct    float64 `json:"gap_pct"`
}

type wireRange struct {
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close,omitempty"`
	Established bool    `json:"established,omitempty"`
}

type wireSnapshot struct {
	Symbol         string               `json:"symbol"`
	T              int64                `json:"t"` // ms
	Phase          string               `json:"phase,omitempty"`
	Indicators     map[string]float64   `json:"indicators"`
	Series         map[string][]float64 `json:"series,omitempty"`
	Gap            *wireGap             `json:"gap,omitempty"`
	OpeningRange   *wireRange           `json:"opening_range,omitempty"`
	OvernightRange *wireRange           `json:"overnight_range,omitempty"`
}

type wireMessage struct {
	Type string         `json:"type"`
	Data []wireSnapshot `json:"data"`
}

// Read streams snapshots and errors until the context ends or the
// connection drops.
func (c *Client) Read(ctx context.Context) (<-chan *models.MarketSnapshot, <-chan error) {
	snaps := make(chan *models.MarketSnapshot, 256)
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
				if conn := c.current(); conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(snaps)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				conn := c.current()
				if conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var m wireMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-snapshot frames
					continue
				}
				if m.Type != "snapshot" {
					continue
				}
				for i := range m.Data {
					snap := c.toSnapshot(&m.Data[i])
					select {
					case snaps <- snap:
					default:
						// drop on backpressure: a stale snapshot is
						// worse than a missed one
					}
				}
			}
		}
	}()

	return snaps, errs
}

func (c *Client) toSnapshot(w *wireSnapshot) *models.MarketSnapshot {
	ts := time.UnixMilli(w.T)
	phase := models.SessionPhase(w.Phase)
	if phase == "" {
		phase = models.PhaseAt(ts, c.loc)
	}

	snap := &models.MarketSnapshot{
		Symbol:     w.Symbol,
		Timestamp:  ts,
		Phase:      phase,
		Indicators: w.Indicators,
		Series:     w.Series,
	}
	if w.Gap != nil {
		snap.Gap = &models.GapContext{
			PrevClose: w.Gap.PrevClose,
			OpenPrice: w.Gap.OpenPrice,
			GapPct:    w.Gap.GapPct,
		}
	}
	if w.OpeningRange != nil {
		snap.OpeningRange = &models.OpeningRange{
			High:        w.OpeningRange.High,
			Low:         w.OpeningRange.Low,
			Established: w.OpeningRange.Established,
		}
	}
	if w.OvernightRange != nil {
		snap.OvernightRange = &models.OvernightRange{
			High:  w.OvernightRange.High,
			Low:   w.OvernightRange.Low,
			Close: w.OvernightRange.Close,
		}
	}
	features.Backfill(snap)
	return snap
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
