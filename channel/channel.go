package channel

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"huddle/models"
)

// Add Prometheus metrics
var (
	wsConnectionAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "huddle_channel_connection_attempts_total",
		Help: "The total number of connection attempts to the session channel",
	})

	wsConnectionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "huddle_channel_connection_errors_total",
		Help: "The total number of connection errors encountered",
	})

	wsCurrentConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "huddle_channel_current_connections",
		Help: "The current number of active session channel connections",
	})

	eventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_channel_events_dispatched_total",
		Help: "Inbound events dispatched to handlers, by event type",
	}, []string{"event_type"})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "huddle_channel_events_dropped_total",
		Help: "Inbound events dropped because they were malformed",
	})
)

const (
	wsReadBufferSize  = 1024 * 1024 // 1MB
	wsWriteBufferSize = 1024        // 1KB
	wsReadTimeout     = 60 * time.Second
	wsWriteTimeout    = 10 * time.Second
	wsPingInterval    = 30 * time.Second

	inboundQueueSize = 256
)

// EventType names one message kind on the session channel wire.
type EventType string

// Inbound event vocabulary.
const (
	EventSnapshot        EventType = "snapshot"
	EventItemCreated     EventType = "itemCreated"
	EventItemPatched     EventType = "itemPatched"
	EventItemVoted       EventType = "itemVoted"
	EventPollCreated     EventType = "pollCreated"
	EventPollOptionVoted EventType = "pollOptionVoted"
	EventPollEnded       EventType = "pollEnded"
)

// Outbound event vocabulary.
const (
	EventJoin         EventType = "join"
	EventNewComment   EventType = "newComment"
	EventUpvote       EventType = "upvote"
	EventPushQuestion EventType = "pushQuestion"
	EventCreatePoll   EventType = "createPoll"
	EventEndPoll      EventType = "endPoll"
)

// Status of the session connection. There is no reconnecting state; a
// dropped connection means teardown plus a fresh Connect.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Handler receives one decoded inbound event. Handlers for the same
// event type run in registration order and in channel receipt order.
type Handler func(event any)

// Publisher is the outbound half of the channel, used by the action
// submitter. Sends are fire-and-forget; an error only reports that the
// write itself failed, never that the server rejected anything.
type Publisher interface {
	Publish(eventType EventType, payload any) error
}

// Config holds connection settings for a session channel.
type Config struct {
	// Hosts is a list of channel endpoints to try in order,
	// e.g. ["wss://live.example.com"]
	Hosts     []string
	SessionID string
	Identity  string
	UserAgent string
	Compress  bool
}

// Channel is a bidirectional connection scoped to one session. One
// Channel belongs to exactly one session view; after Disconnect it
// must not be reused.
type Channel struct {
	config  Config
	decoder *zstd.Decoder

	connMu sync.Mutex
	conn   *websocket.Conn

	statusMu sync.RWMutex
	status   Status

	// handlersMu guards the handler registry and the closed flag.
	// The dispatch loop holds it while invoking handlers, which makes
	// Disconnect atomic with teardown: once Disconnect returns no
	// handler can fire again.
	handlersMu sync.Mutex
	handlers   map[EventType][]Handler
	closed     bool

	queue  chan *rawMessage
	cancel context.CancelFunc
}

// rawMessage is an unparsed frame from the websocket.
type rawMessage struct {
	messageType int
	data        []byte
}

// New creates a disconnected channel for the given session.
func New(config Config) (*Channel, error) {
	c := &Channel{
		config:   config,
		status:   StatusDisconnected,
		handlers: make(map[EventType][]Handler),
		queue:    make(chan *rawMessage, inboundQueueSize),
	}

	if config.Compress {
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		c.decoder = decoder
	}

	return c, nil
}

// Status reports the current connection state.
func (c *Channel) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

func (c *Channel) setStatus(s Status) {
	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()
}

// Subscribe registers a handler for one inbound event type. Multiple
// handlers per type are allowed and run in registration order. A no-op
// after Disconnect.
func (c *Channel) Subscribe(eventType EventType, handler Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	if c.closed {
		return
	}
	c.handlers[eventType] = append(c.handlers[eventType], handler)
}

// Connect dials the session channel, announces the join and starts the
// read and dispatch loops. Each configured host is tried once; there is
// no retry or backoff here, callers that want to rejoin create a fresh
// channel.
func (c *Channel) Connect(ctx context.Context) error {
	if len(c.config.Hosts) == 0 {
		return fmt.Errorf("no hosts provided in config")
	}

	log.WithFields(log.Fields{
		"hosts":   c.config.Hosts,
		"session": c.config.SessionID,
	}).Info("Connecting to session channel")

	c.setStatus(StatusConnecting)

	dialer := websocket.Dialer{
		ReadBufferSize:   wsReadBufferSize,
		WriteBufferSize:  wsWriteBufferSize,
		HandshakeTimeout: 45 * time.Second,
		NetDialContext: (&net.Dialer{
			Timeout:   45 * time.Second,
			KeepAlive: 45 * time.Second,
		}).DialContext,
	}

	headers := http.Header{}
	if c.config.UserAgent != "" {
		headers.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.Compress {
		headers.Set("Accept-Encoding", "zstd")
	}

	var conn *websocket.Conn
	var dialErr error

	for _, host := range c.config.Hosts {
		u, err := url.Parse(fmt.Sprintf("%s/channel", host))
		if err != nil {
			c.setStatus(StatusDisconnected)
			return fmt.Errorf("failed to parse URL: %w", err)
		}

		q := u.Query()
		q.Set("session", c.config.SessionID)
		if c.config.Compress {
			q.Set("compress", "true")
		}
		u.RawQuery = q.Encode()

		wsConnectionAttempts.Inc()

		conn, _, dialErr = dialer.DialContext(ctx, u.String(), headers)
		if dialErr == nil {
			break
		}

		wsConnectionErrors.Inc()
		log.Errorf("Error connecting to channel host %s: %s", host, dialErr)
	}

	if dialErr != nil {
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("all channel hosts failed: %w", dialErr)
	}

	setupConnectionHandlers(conn)

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	// Announce intent to join before anything else is sent or received.
	join := models.JoinPayload{SessionID: c.config.SessionID, Identity: c.config.Identity}
	if err := c.Publish(EventJoin, join); err != nil {
		conn.Close()
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("failed to announce join: %w", err)
	}

	wsCurrentConnections.Inc()
	c.setStatus(StatusConnected)

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go c.readLoop(loopCtx, conn)
	go c.dispatchLoop(loopCtx)
	go c.managePingPong(loopCtx, conn)

	return nil
}

// readLoop reads frames off the websocket into the inbound queue until
// the connection drops or is closed.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		wsCurrentConnections.Dec()
		close(c.queue)
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Errorf("Unexpected websocket close: %v", err)
				wsConnectionErrors.Inc()
			}
			c.setStatus(StatusDisconnected)
			return
		}

		if !c.enqueue(ctx, &rawMessage{messageType: messageType, data: message}) {
			return
		}
	}
}

// enqueue hands one frame to the dispatch loop. Returns false when the
// channel is torn down while the queue is full, so the read loop never
// blocks past Disconnect.
func (c *Channel) enqueue(ctx context.Context, msg *rawMessage) bool {
	select {
	case c.queue <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// dispatchLoop decodes queued frames and invokes handlers. A single
// goroutine consumes the queue so same-type events keep receipt order.
func (c *Channel) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.queue:
			if !ok {
				return
			}
			c.dispatch(msg)
		}
	}
}

// dispatch decodes one frame and fans it out. Malformed frames are
// dropped and logged; they never terminate the loop.
func (c *Channel) dispatch(msg *rawMessage) {
	data := msg.data

	if c.decoder != nil && msg.messageType == websocket.BinaryMessage {
		decompressed, err := c.decoder.DecodeAll(data, nil)
		if err != nil {
			eventsDropped.Inc()
			log.Warnf("Dropping frame, failed to decompress: %v", err)
			return
		}
		data = decompressed
	}

	eventType, event, err := decodeEvent(data)
	if err != nil {
		eventsDropped.Inc()
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("Dropping malformed event")
		return
	}

	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	if c.closed {
		return
	}

	eventsDispatched.WithLabelValues(string(eventType)).Inc()

	for _, handler := range c.handlers[eventType] {
		invoke(eventType, handler, event)
	}
}

// invoke runs one handler behind a recover boundary so a panicking
// handler cannot kill the dispatch loop.
func invoke(eventType EventType, handler Handler, event any) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"event": eventType,
				"panic": r,
			}).Error("Recovered panicking event handler")
		}
	}()
	handler(event)
}

// Publish sends a fire-and-forget message. There is no acknowledgement
// and no retry; a write error flips the status to disconnected.
func (c *Channel) Publish(eventType EventType, payload any) error {
	env, err := encodeEnvelope(eventType, payload)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("channel is not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteJSON(env); err != nil {
		log.WithFields(log.Fields{
			"event": eventType,
			"error": err,
		}).Warn("Failed to publish event")
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("publish failed: %w", err)
	}

	return nil
}

// Disconnect tears the channel down. It synchronously deregisters all
// handlers; a handler already executing may finish, but none starts
// after Disconnect returns. Safe to call more than once.
func (c *Channel) Disconnect() {
	c.handlersMu.Lock()
	if c.closed {
		c.handlersMu.Unlock()
		return
	}
	c.closed = true
	c.handlers = nil
	c.handlersMu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.setStatus(StatusDisconnected)
	log.WithFields(log.Fields{
		"session": c.config.SessionID,
	}).Info("Disconnected from session channel")
}

// setupConnectionHandlers configures the websocket connection handlers
func setupConnectionHandlers(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))

	conn.SetCloseHandler(func(code int, text string) error {
		log.Infof("WebSocket connection closed with code %d: %s", code, text)
		return nil
	})

	conn.SetPingHandler(func(appData string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	conn.SetPongHandler(func(appData string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})
}

// managePingPong handles the ping/pong keepalive for the connection.
func (c *Channel) managePingPong(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wsWriteTimeout)); err != nil {
				log.Warn("Ping failed, closing connection: ", err)
				wsConnectionErrors.Inc()
				conn.Close()
				return
			}

			if err := conn.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
				log.Warn("Failed to set read deadline, closing connection: ", err)
				wsConnectionErrors.Inc()
				conn.Close()
				return
			}
		}
	}
}
