package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/o4o-platform/signage-agent/internal/constants"
	"github.com/o4o-platform/signage-agent/internal/models"
)

// ActionListener receives inbound playback commands from Core. The method
// set is the full inbound protocol; there are no other inbound events.
type ActionListener interface {
	OnActionExecute(cmd models.ActionCommand)
	OnActionPause(actionExecutionID string)
	OnActionResume(actionExecutionID string)
	OnActionStop(actionExecutionID string)
}

// ConnectionListener receives transport lifecycle notifications.
type ConnectionListener interface {
	OnDisconnected(err error)
	OnSocketError(err error)
}

// CoreSocketClient defines the realtime transport to Core.
type CoreSocketClient interface {
	Connect(ctx context.Context, displayID string) error
	Disconnect()
	IsConnected() bool
	SendHeartbeat(payload models.HeartbeatPayload) error
	SendActionStatus(update models.ActionStatusUpdate) error
	SetActionListener(l ActionListener)
	SetConnectionListener(l ConnectionListener)
}

// envelope is the wire frame for every socket message in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is a websocket client for the Core realtime channel.
type Client struct {
	wsURL             string
	connectionTimeout time.Duration
	reconnectInterval time.Duration
	maxAttempts       int
	logger            zerolog.Logger

	actionListener ActionListener
	connListener   ConnectionListener

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closing   bool
}

// NewClient creates a socket client bound to the Core WebSocket URL.
func NewClient(wsURL string, connectionTimeout, reconnectInterval time.Duration, maxAttempts int, logger zerolog.Logger) *Client {
	return &Client{
		wsURL:             wsURL,
		connectionTimeout: connectionTimeout,
		reconnectInterval: reconnectInterval,
		maxAttempts:       maxAttempts,
		logger:            logger,
	}
}

// SetActionListener registers the receiver for inbound action events.
func (c *Client) SetActionListener(l ActionListener) {
	c.actionListener = l
}

// SetConnectionListener registers the receiver for transport events.
func (c *Client) SetConnectionListener(l ConnectionListener) {
	c.connListener = l
}

// Connect dials Core, identifying as the given display. Dial failures are
// retried internally every reconnectInterval until the attempt cap; once the
// cap is reached the error is returned and also surfaced to the connection
// listener.
func (c *Client) Connect(ctx context.Context, displayID string) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		conn, err := c.dial(ctx)
		if err == nil {
			if err := c.identify(conn, displayID); err != nil {
				conn.Close()
				lastErr = err
			} else {
				c.mu.Lock()
				c.conn = conn
				c.connected = true
				c.closing = false
				c.mu.Unlock()

				go c.readLoop(conn)

				c.logger.Info().Str("display_id", displayID).Int("attempt", attempt).Msg("Connected to Core socket")
				return nil
			}
		} else {
			lastErr = err
		}

		c.logger.Warn().Err(lastErr).Int("attempt", attempt).Int("max_attempts", c.maxAttempts).Msg("Core socket connect failed")

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectInterval):
		}
	}

	err := fmt.Errorf("failed to connect to Core after %d attempts: %w", c.maxAttempts, lastErr)
	if c.connListener != nil {
		c.connListener.OnSocketError(err)
	}
	return err
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.connectionTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, c.connectionTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, c.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial core socket: %w", err)
	}
	return conn, nil
}

// identify sends the agent:connected frame that binds this connection to a
// display before any other traffic.
func (c *Client) identify(conn *websocket.Conn, displayID string) error {
	frame, err := marshalEnvelope(constants.EventAgentConnected, map[string]string{"displayId": displayID})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send connected event: %w", err)
	}
	return nil
}

// readLoop decodes inbound frames into typed listener calls until the
// connection drops.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Error().Err(err).Msg("Failed to decode socket frame")
			continue
		}

		c.dispatch(env)
	}
}

func (c *Client) dispatch(env envelope) {
	if c.actionListener == nil {
		c.logger.Warn().Str("event", env.Event).Msg("No action listener registered, dropping event")
		return
	}

	switch env.Event {
	case constants.EventActionExecute:
		var cmd models.ActionCommand
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			c.logger.Error().Err(err).Msg("Failed to decode action:execute payload")
			return
		}
		c.actionListener.OnActionExecute(cmd)
	case constants.EventActionPause:
		if id, ok := c.decodeControl(env); ok {
			c.actionListener.OnActionPause(id)
		}
	case constants.EventActionResume:
		if id, ok := c.decodeControl(env); ok {
			c.actionListener.OnActionResume(id)
		}
	case constants.EventActionStop:
		if id, ok := c.decodeControl(env); ok {
			c.actionListener.OnActionStop(id)
		}
	default:
		c.logger.Debug().Str("event", env.Event).Msg("Ignoring unknown socket event")
	}
}

func (c *Client) decodeControl(env envelope) (string, bool) {
	var ctl models.ActionControl
	if err := json.Unmarshal(env.Data, &ctl); err != nil {
		c.logger.Error().Err(err).Str("event", env.Event).Msg("Failed to decode action control payload")
		return "", false
	}
	return ctl.ActionExecutionID, true
}

func (c *Client) handleDisconnect(conn *websocket.Conn, err error) {
	c.mu.Lock()
	deliberate := c.closing || c.conn != conn
	if c.conn == conn {
		c.connected = false
		c.conn = nil
	}
	c.mu.Unlock()

	if deliberate {
		return
	}

	c.logger.Warn().Err(err).Msg("Core socket disconnected")
	if c.connListener != nil {
		c.connListener.OnDisconnected(err)
	}
}

// IsConnected reports whether the realtime channel is currently usable.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SendHeartbeat emits an agent:heartbeat frame. A no-op when disconnected;
// missed sends are not queued or replayed.
func (c *Client) SendHeartbeat(payload models.HeartbeatPayload) error {
	return c.send(constants.EventAgentHeartbeat, payload)
}

// SendActionStatus emits an action:status frame. A no-op when disconnected.
func (c *Client) SendActionStatus(update models.ActionStatusUpdate) error {
	return c.send(constants.EventActionStatus, update)
}

func (c *Client) send(event string, data any) error {
	frame, err := marshalEnvelope(event, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		c.logger.Debug().Str("event", event).Msg("Socket not connected, dropping outbound event")
		return nil
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Failed to write socket frame")
		return err
	}
	return nil
}

// Disconnect closes the connection. The pending read loop exits without
// notifying the connection listener.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closing = true
	if c.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

func marshalEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("serialize %s payload: %w", event, err)
	}
	return json.Marshal(envelope{Event: event, Data: raw})
}
