package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrClientClosed is returned by operations on a closed WebSocket client.
var ErrClientClosed = errors.New("websocket client closed")

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	SubscribeTimeout  time.Duration
	// BufferSize is the per-subscription channel capacity.
	BufferSize int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		BufferSize:        1024,
	}
}

type logSubscription struct {
	filter     LogsFilter
	ch         chan LogNotification
	confirmed  chan int64
	registered bool // guarded by WebSocketClient.mu
}

// WebSocketClient implements WSClient using gorilla/websocket. Subscriptions
// survive reconnects: after a redial every filter is subscribed again and
// notifications keep flowing into the original channel.
type WebSocketClient struct {
	endpoint string
	config   WSConfig
	logger   *zap.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	mu      sync.Mutex
	pending map[uint64]*logSubscription // request id -> awaiting confirmation
	active  map[int64]*logSubscription  // subscription id -> subscriber
	all     []*logSubscription

	requestID atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewWebSocketClient dials the endpoint and starts the read and ping loops.
func NewWebSocketClient(ctx context.Context, endpoint string, config *WSConfig, logger *zap.Logger) (*WebSocketClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultWSConfig().BufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &WebSocketClient{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger.Named("ws"),
		pending:  make(map[uint64]*logSubscription),
		active:   make(map[int64]*logSubscription),
		done:     make(chan struct{}),
	}

	if err := c.dial(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *WebSocketClient) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// SubscribeLogs subscribes to program logs matching the filter.
func (c *WebSocketClient) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	sub := &logSubscription{
		filter:    filter,
		ch:        make(chan LogNotification, c.config.BufferSize),
		confirmed: make(chan int64, 1),
	}

	reqID, err := c.sendSubscribe(sub)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	select {
	case subID := <-sub.confirmed:
		c.logger.Info("subscribed to logs", zap.Int64("subscription", subID), zap.Strings("mentions", filter.Mentions))
		return sub.ch, nil
	case <-timer.C:
		c.dropPending(reqID)
		return nil, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return nil, ErrClientClosed
	case <-ctx.Done():
		c.dropPending(reqID)
		return nil, ctx.Err()
	}
}

// sendSubscribe registers sub as pending and writes a logsSubscribe request.
func (c *WebSocketClient) sendSubscribe(sub *logSubscription) (uint64, error) {
	reqID := c.requestID.Add(1)

	filter := map[string]interface{}{}
	if len(sub.filter.Mentions) > 0 {
		filter["mentions"] = sub.filter.Mentions
	} else {
		filter["all"] = nil
	}

	commitment := sub.filter.Commitment
	if commitment == "" {
		commitment = CommitmentConfirmed
	}

	c.mu.Lock()
	c.pending[reqID] = sub
	c.mu.Unlock()

	err := c.writeJSON(wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			filter,
			map[string]string{"commitment": commitment},
		},
	})
	if err != nil {
		c.dropPending(reqID)
		return 0, fmt.Errorf("write subscribe: %w", err)
	}
	return reqID, nil
}

func (c *WebSocketClient) dropPending(reqID uint64) {
	c.mu.Lock()
	delete(c.pending, reqID)
	c.mu.Unlock()
}

func (c *WebSocketClient) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// Close closes the WebSocket connection and every subscription channel.
func (c *WebSocketClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	for _, sub := range c.all {
		close(sub.ch)
	}
	c.all = nil
	c.active = make(map[int64]*logSubscription)
	c.pending = make(map[uint64]*logSubscription)
	c.mu.Unlock()
	return nil
}

// readLoop reads messages and dispatches them; read errors trigger a redial.
func (c *WebSocketClient) readLoop() {
	defer c.wg.Done()

	delay := c.config.ReconnectDelay
	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn != nil {
			conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
			_, message, err := conn.ReadMessage()
			if err == nil {
				delay = c.config.ReconnectDelay
				c.handleMessage(message)
				continue
			}
			if c.closed.Load() {
				return
			}
			c.logger.Warn("websocket read failed", zap.Error(err))
		}

		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, c.config.MaxReconnectDelay)

		if err := c.reconnect(); err != nil {
			c.logger.Warn("websocket reconnect failed", zap.Error(err), zap.Duration("next_delay", delay))
		}
	}
}

// reconnect redials and re-issues every known subscription.
func (c *WebSocketClient) reconnect() error {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.dial(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	subs := append([]*logSubscription(nil), c.all...)
	c.active = make(map[int64]*logSubscription)
	c.mu.Unlock()

	for _, sub := range subs {
		if _, err := c.sendSubscribe(sub); err != nil {
			return fmt.Errorf("resubscribe: %w", err)
		}
	}
	c.logger.Info("websocket reconnected", zap.Int("subscriptions", len(subs)))
	return nil
}

func (c *WebSocketClient) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Debug("ignoring malformed message", zap.Error(err))
		return
	}

	switch {
	case env.Method == "logsNotification" && env.Params != nil:
		c.dispatch(env.Params)
	case env.Error != nil:
		c.logger.Warn("websocket error response",
			zap.Uint64("id", env.ID),
			zap.Int("code", env.Error.Code),
			zap.String("message", env.Error.Message),
		)
	case env.ID != 0 && env.Result != nil:
		var subID int64
		if err := json.Unmarshal(env.Result, &subID); err != nil {
			return
		}
		c.confirm(env.ID, subID)
	}
}

func (c *WebSocketClient) confirm(reqID uint64, subID int64) {
	c.mu.Lock()
	sub, ok := c.pending[reqID]
	if ok {
		delete(c.pending, reqID)
		c.active[subID] = sub
		if !sub.registered {
			sub.registered = true
			c.all = append(c.all, sub)
		}
	}
	c.mu.Unlock()

	if ok {
		select {
		case sub.confirmed <- subID:
		default:
		}
	}
}

func (c *WebSocketClient) dispatch(params *wsNotificationParams) {
	c.mu.Lock()
	sub, ok := c.active[params.Subscription]
	c.mu.Unlock()
	if !ok {
		return
	}

	notif := LogNotification{
		Signature: params.Result.Value.Signature,
		Logs:      params.Result.Value.Logs,
		Err:       params.Result.Value.Err,
	}
	if params.Result.Context != nil {
		notif.Slot = params.Result.Context.Slot
	}

	// Block rather than drop; the buffer absorbs bursts.
	select {
	case sub.ch <- notif:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *WebSocketClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.logger.Debug("ping failed", zap.Error(err))
				}
			}
			c.connMu.Unlock()
		}
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsEnvelope struct {
	ID     uint64                `json:"id"`
	Method string                `json:"method"`
	Result json.RawMessage       `json:"result"`
	Error  *rpcError             `json:"error"`
	Params *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}

var _ WSClient = (*WebSocketClient)(nil)
