// internal/transport/connector.go
package transport

import (
	"fmt"
	"sync"
	"time"

	"school-notifier/internal/common/config"
	apperrors "school-notifier/internal/common/errors"
	"school-notifier/internal/common/logger"
	"school-notifier/internal/common/metrics"
	"school-notifier/internal/common/validation"
	"school-notifier/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type listener struct {
	id int
	fn HandlerFunc
}

// Connector owns the push-channel websocket connection, the authentication
// handshake and the bounded reconnection policy. It performs no business
// interpretation of payloads beyond routing them to handlers.
//
// It is the single owner of the network channel: nothing else in the process
// opens a second one.
type Connector struct {
	cfg       config.TransportConfig
	dialer    *websocket.Dialer
	log       logger.Logger
	validator *validation.EnvelopeValidator

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	state     models.ConnectionState
	listeners map[string][]listener
	nextID    int

	userID    string
	token     string
	sessionID string
	rooms     map[string]bool

	// generation invalidates read and reconnect loops from torn-down
	// sessions; every explicit Connect/Disconnect bumps it.
	generation   int
	authRejected bool
}

func NewConnector(cfg config.TransportConfig, log logger.Logger) (*Connector, error) {
	validator, err := validation.NewEnvelopeValidator()
	if err != nil {
		return nil, err
	}
	return &Connector{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: time.Duration(cfg.HandshakeTimeout) * time.Millisecond,
		},
		log:       log.WithFields(map[string]interface{}{"component": "transport"}),
		validator: validator,
		state:     models.ConnectionState{Status: models.StatusDisconnected},
		listeners: make(map[string][]listener),
		rooms:     make(map[string]bool),
	}, nil
}

// On registers a handler for an event name and returns a subscription id for
// Off. Multiple handlers per event are supported and invoked in registration
// order.
func (c *Connector) On(event string, fn HandlerFunc) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.listeners[event] = append(c.listeners[event], listener{id: c.nextID, fn: fn})
	return c.nextID
}

// Off removes a previously registered handler.
func (c *Connector) Off(event string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ls := c.listeners[event]
	for i := range ls {
		if ls[i].id == id {
			c.listeners[event] = append(ls[:i], ls[i+1:]...)
			return
		}
	}
}

// State returns the current connection state.
func (c *Connector) State() models.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the push channel and performs the authentication handshake.
// Idempotent: a live session is torn down first. A dial failure is returned
// to the caller; automatic reconnection only covers drops of an established
// session.
func (c *Connector) Connect(userID, token string) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.userID = userID
	c.token = token
	c.sessionID = uuid.NewString()
	c.authRejected = false
	c.setStateLocked(models.StatusConnecting, "")
	c.mu.Unlock()

	conn, err := c.dial()
	if err != nil {
		c.mu.Lock()
		c.setStateLocked(models.StatusError, err.Error())
		c.mu.Unlock()
		return apperrors.NewConnectionFailedError(err)
	}

	c.mu.Lock()
	if gen != c.generation {
		// A concurrent Connect/Disconnect superseded this session.
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.setStateLocked(models.StatusConnected, "")
	c.mu.Unlock()

	c.emit(EventConnected, map[string]interface{}{"sessionId": c.sessionID})
	go c.readLoop(conn, gen)
	return nil
}

// Disconnect closes the channel and clears all registered listeners. Safe to
// call when not connected.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.listeners = make(map[string][]listener)
	c.rooms = make(map[string]bool)
	c.setStateLocked(models.StatusDisconnected, "")
}

// Join subscribes the session to a server-side room. Fire and forget.
func (c *Connector) Join(room string) {
	c.mu.Lock()
	c.rooms[room] = true
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.writeFrame(conn, Frame{Event: commandJoin, Payload: map[string]interface{}{"room": room}})
	}
}

// Leave unsubscribes the session from a room. Fire and forget.
func (c *Connector) Leave(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.writeFrame(conn, Frame{Event: commandLeave, Payload: map[string]interface{}{"room": room}})
	}
}

// dial opens the socket and sends the auth handshake as the first frame.
func (c *Connector) dial() (*websocket.Conn, error) {
	conn, _, err := c.dialer.Dial(c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	handshake := map[string]interface{}{
		"userId":    c.userID,
		"token":     c.token,
		"sessionId": c.sessionID,
	}
	if err := conn.WriteJSON(handshake); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("auth handshake: %w", err)
	}
	return conn, nil
}

func (c *Connector) readLoop(conn *websocket.Conn, gen int) {
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			c.handleDrop(gen, err)
			return
		}

		if result := c.validator.Validate(frameDocument(frame)); !result.Valid {
			invalid := apperrors.NewPayloadInvalidError(frame.Event, result.Describe())
			c.log.Warn("inbound frame failed validation, admitting with defaults", map[string]interface{}{
				"event": frame.Event,
				"code":  string(invalid.Code),
				"error": invalid.Details,
			})
		}

		switch frame.Event {
		case wireAuthenticated:
			c.emit(EventAuthenticated, frame.Payload)

		case wireAuthError:
			// Rejected credentials never retry; recovery needs an
			// explicit Connect with fresh credentials.
			reason := payloadMessage(frame.Payload)
			authErr := apperrors.NewAuthRejectedError(reason)
			c.log.Error("push channel authentication rejected", map[string]interface{}{
				"code":      string(authErr.Code),
				"details":   authErr.Details,
				"retryable": authErr.Retryable,
			})
			c.mu.Lock()
			c.authRejected = true
			if gen == c.generation {
				c.setStateLocked(models.StatusError, reason)
				if c.conn != nil {
					_ = c.conn.Close()
					c.conn = nil
				}
			}
			c.mu.Unlock()
			c.emit(EventAuthError, frame.Payload)
			return

		default:
			c.emit(frame.Event, frame.Payload)
			if !reservedEvent(frame.Event) {
				c.emit(EventNotification, frame.Payload)
			}
		}
	}
}

// handleDrop distinguishes an intentional teardown from a transient drop and
// starts the bounded reconnect loop for the latter.
func (c *Connector) handleDrop(gen int, err error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	rejected := c.authRejected
	c.conn = nil
	c.setStateLocked(models.StatusDisconnected, err.Error())
	c.mu.Unlock()

	dropErr := apperrors.NewConnectionDroppedError(err.Error())
	c.log.Warn("push channel dropped", map[string]interface{}{
		"code":      string(dropErr.Code),
		"details":   dropErr.Details,
		"retryable": dropErr.Retryable,
	})
	c.emit(EventDisconnected, map[string]interface{}{"reason": err.Error()})

	if !rejected {
		go c.reconnectLoop(gen, err)
	}
}

// reconnectLoop retries with a delay growing from the configured minimum to
// the capped maximum. On final failure the state surfaces as error and must
// be recovered by an explicit Connect.
func (c *Connector) reconnectLoop(gen int, lastErr error) {
	delay := c.cfg.Reconnect.InitialDelayDuration()
	maxDelay := c.cfg.Reconnect.MaxDelayDuration()

	for attempt := 1; attempt <= c.cfg.Reconnect.MaxAttempts; attempt++ {
		time.Sleep(delay)

		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		c.setStateLocked(models.StatusConnecting, "")
		rooms := make([]string, 0, len(c.rooms))
		for room := range c.rooms {
			rooms = append(rooms, room)
		}
		c.mu.Unlock()

		metrics.ReconnectAttempts.Inc()
		c.log.Info("reconnecting push channel", map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": c.cfg.Reconnect.MaxAttempts,
		})

		conn, err := c.dial()
		if err == nil {
			c.mu.Lock()
			if gen != c.generation {
				c.mu.Unlock()
				_ = conn.Close()
				return
			}
			c.conn = conn
			c.setStateLocked(models.StatusConnected, "")
			c.mu.Unlock()

			for _, room := range rooms {
				c.writeFrame(conn, Frame{Event: commandJoin, Payload: map[string]interface{}{"room": room}})
			}

			c.emit(EventConnected, map[string]interface{}{"sessionId": c.sessionID, "reconnected": true})
			go c.readLoop(conn, gen)
			return
		}

		lastErr = err
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}

	exhausted := apperrors.NewReconnectExhaustedError(c.cfg.Reconnect.MaxAttempts, lastErr)
	c.mu.Lock()
	if gen == c.generation {
		c.setStateLocked(models.StatusError, fmt.Sprintf("reconnect exhausted: %v", lastErr))
	}
	c.mu.Unlock()

	c.log.Error("reconnect budget exhausted", map[string]interface{}{
		"code":     string(exhausted.Code),
		"attempts": c.cfg.Reconnect.MaxAttempts,
		"error":    exhausted.Details,
	})
	c.emit(EventError, map[string]interface{}{
		"message": fmt.Sprintf("reconnect exhausted: %v", lastErr),
		"code":    string(exhausted.Code),
		"details": exhausted.Details,
	})
}

// emit invokes the handlers registered for an event, in registration order,
// each isolated from panics.
func (c *Connector) emit(event string, payload map[string]interface{}) {
	c.mu.Lock()
	ls := make([]listener, len(c.listeners[event]))
	copy(ls, c.listeners[event])
	c.mu.Unlock()

	for _, l := range ls {
		c.invoke(event, l.fn, payload)
	}
}

func (c *Connector) invoke(event string, fn HandlerFunc, payload map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("event handler panicked", map[string]interface{}{
				"event": event,
				"panic": fmt.Sprintf("%v", r),
			})
		}
	}()
	fn(payload)
}

func (c *Connector) writeFrame(conn *websocket.Conn, frame Frame) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(frame); err != nil {
		c.log.Warn("failed to write frame", map[string]interface{}{
			"event": frame.Event,
			"error": err.Error(),
		})
	}
}

// setStateLocked must be called with c.mu held.
func (c *Connector) setStateLocked(status models.ConnectionStatus, lastError string) {
	c.state = models.ConnectionState{Status: status, LastError: lastError}
	metrics.ConnectionStatus.Set(status.GaugeValue())
}

// reservedEvent reports whether the name belongs to the connector's own
// lifecycle vocabulary. Reserved frames are never mirrored into the generic
// notification stream; otherwise a server frame named "error" or "connected"
// would surface as a domain notification.
func reservedEvent(event string) bool {
	switch event {
	case EventConnected, EventDisconnected, EventError, EventAuthenticated, EventAuthError, EventNotification:
		return true
	}
	return false
}

func frameDocument(frame Frame) map[string]interface{} {
	doc := map[string]interface{}{"event": frame.Event}
	if frame.Payload != nil {
		doc["payload"] = frame.Payload
	}
	return doc
}

func payloadMessage(payload map[string]interface{}) string {
	if payload == nil {
		return ""
	}
	if msg, ok := payload["message"].(string); ok {
		return msg
	}
	return ""
}
