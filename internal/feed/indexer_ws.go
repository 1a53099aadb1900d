// Package feed maintains a WebSocket subscription to the chain indexer so
// market statistics refresh on pool activity instead of only on user
// navigation.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// PoolUpdateHandler is called when the indexer reports wager activity on a
// market's encrypted pools.
type PoolUpdateHandler func(ctx context.Context, marketID uint64)

// MarketResolvedHandler is called when the indexer reports that a market was
// resolved by the oracle.
type MarketResolvedHandler func(ctx context.Context, marketID uint64)

// subscribeCmd is the JSON command sent to the indexer after connecting.
type subscribeCmd struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

// indexerEvent is the outer envelope of every indexer message.
type indexerEvent struct {
	Event    string `json:"event"`
	MarketID uint64 `json:"market_id"`
}

// IndexerFeed connects to the indexer WebSocket, subscribes to pool_update
// and market_resolved, and invokes the provided handlers on each event. It
// reconnects with exponential backoff on disconnect.
type IndexerFeed struct {
	wsURL      string
	onPool     PoolUpdateHandler
	onResolved MarketResolvedHandler
	logger     *slog.Logger
	closeOnce  sync.Once
	done       chan struct{}
}

// NewIndexerFeed creates a feed that subscribes to the indexer at wsURL.
func NewIndexerFeed(wsURL string, onPool PoolUpdateHandler, onResolved MarketResolvedHandler, logger *slog.Logger) *IndexerFeed {
	return &IndexerFeed{
		wsURL:      wsURL,
		onPool:     onPool,
		onResolved: onResolved,
		logger:     logger.With(slog.String("component", "indexer_feed")),
		done:       make(chan struct{}),
	}
}

// Run connects, subscribes, and dispatches events until ctx is cancelled.
// Every disconnect triggers a reconnect with exponential backoff; the feed
// never gives up while the context is live.
func (f *IndexerFeed) Run(ctx context.Context) error {
	delay := reconnectDelay

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			f.logger.Warn("indexer ws disconnected, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("delay", delay),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// Close stops the feed.
func (f *IndexerFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// runConnection holds one WebSocket connection from dial to failure. A clean
// subscription resets nothing here; backoff handling stays in Run.
func (f *IndexerFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := dialer.DialContext(dialCtx, f.wsURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("feed: connect: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := f.subscribe(conn); err != nil {
		return err
	}
	f.logger.Info("indexer ws subscribed", slog.String("url", f.wsURL))

	// Close the connection when the context ends so the blocked read returns.
	readerDone := make(chan struct{})
	defer close(readerDone)
	go func() {
		select {
		case <-ctx.Done():
		case <-f.done:
		case <-readerDone:
			return
		}
		conn.Close()
	}()

	go f.pingLoop(ctx, conn)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		f.handleMessage(ctx, message)
	}
}

func (f *IndexerFeed) subscribe(conn *websocket.Conn) error {
	cmd := subscribeCmd{
		Type:     "subscribe",
		Channels: []string{"pool_update", "market_resolved"},
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("feed: marshal subscribe: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	return nil
}

// pingLoop sends periodic ping messages to keep the WebSocket alive.
func (f *IndexerFeed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw indexer message and routes it by event type.
// Unparseable messages are dropped silently.
func (f *IndexerFeed) handleMessage(ctx context.Context, raw []byte) {
	var ev indexerEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}
	if ev.MarketID == 0 {
		return
	}

	switch ev.Event {
	case "pool_update":
		if f.onPool != nil {
			f.onPool(ctx, ev.MarketID)
		}
	case "market_resolved":
		if f.onResolved != nil {
			f.onResolved(ctx, ev.MarketID)
		}
	}
}
