// Package autopush receives Web Push messages over the Mozilla autopush
// websocket protocol and delivers them to the event bus.
package autopush

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/colonyops/cinq/internal/core/eventbus"
	"github.com/colonyops/cinq/internal/core/kv"
	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/notify"
)

// DefaultURL is Mozilla's public push service.
const DefaultURL = "wss://push.services.mozilla.com/"

// Ack codes.
const (
	ackDelivered = 100
	ackDecrypt   = 101
	ackOther     = 102
)

const stateKey = "state"

// ErrNotConnected is returned when a request is made without a live connection.
var ErrNotConnected = errors.New("push service not connected")

// Publisher delivers decrypted messages.
type Publisher interface {
	PublishBackgroundMessage(ctx context.Context, p eventbus.BackgroundMessagePayload) error
}

// Options configure a Client.
type Options struct {
	URL       string
	Store     kv.KV
	Publisher Publisher

	// PingInterval is the keepalive period. Zero uses 5 minutes.
	PingInterval time.Duration
	// RequestTimeout bounds hello, register and unregister. Zero uses 10s.
	RequestTimeout time.Duration
}

// state is persisted across runs so the server keeps delivering to the same
// endpoint.
type state struct {
	UAID      string `json:"uaid,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Private   string `json:"private,omitempty"`
	Auth      string `json:"auth,omitempty"`
}

func (s state) subscribed() bool {
	return s.ChannelID != "" && s.Endpoint != ""
}

// message is the union of every autopush frame we send or receive.
type message struct {
	MessageType  string            `json:"messageType,omitempty"`
	UAID         string            `json:"uaid,omitempty"`
	UseWebPush   bool              `json:"use_webpush,omitempty"`
	ChannelIDs   []string          `json:"channelIDs,omitempty"`
	ChannelID    string            `json:"channelID,omitempty"`
	Key          string            `json:"key,omitempty"`
	Status       int               `json:"status,omitempty"`
	PushEndpoint string            `json:"pushEndpoint,omitempty"`
	Version      string            `json:"version,omitempty"`
	Data         string            `json:"data,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Updates      []ackUpdate       `json:"updates,omitempty"`
}

type ackUpdate struct {
	ChannelID string `json:"channelID"`
	Version   string `json:"version"`
	Code      int    `json:"code"`
}

// Client is a push.Platform backed by an autopush connection.
type Client struct {
	url     string
	store   *kv.TypedKV[state]
	pub     Publisher
	dialer  websocket.Dialer
	ping    time.Duration
	timeout time.Duration
	log     zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}

	writeMu sync.Mutex
	// reqMu serializes register and unregister; replies carries their answer.
	reqMu   sync.Mutex
	replies chan message
}

// New creates a client. It does not connect until Run or Subscribe.
func New(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 5 * time.Minute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}

	c := &Client{
		url:     opts.URL,
		pub:     opts.Publisher,
		dialer:  websocket.Dialer{HandshakeTimeout: opts.RequestTimeout},
		ping:    opts.PingInterval,
		timeout: opts.RequestTimeout,
		log:     logging.Component("autopush"),
		replies: make(chan message, 1),
	}
	if opts.Store != nil {
		c.store = kv.Scoped[state](opts.Store, "autopush")
	}
	return c
}

// Supported reports whether the client can hold a subscription.
func (c *Client) Supported() bool {
	return c.store != nil && c.url != ""
}

// Subscription returns the stored subscription, or nil.
func (c *Client) Subscription(ctx context.Context) (*notify.Subscription, error) {
	st, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	if !st.subscribed() {
		return nil, nil
	}
	sub, err := st.subscription()
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Subscribe registers a channel for applicationServerKey and returns the new
// subscription. Fresh keys are generated for every channel.
func (c *Client) Subscribe(ctx context.Context, applicationServerKey []byte) (notify.Subscription, error) {
	if !c.Supported() {
		return notify.Subscription{}, errors.New("autopush has no store")
	}
	if _, err := c.connect(ctx); err != nil {
		return notify.Subscription{}, err
	}

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return notify.Subscription{}, fmt.Errorf("generate key: %w", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		return notify.Subscription{}, fmt.Errorf("generate auth secret: %w", err)
	}

	channelID := uuid.NewString()
	reply, err := c.request(ctx, message{
		MessageType: "register",
		ChannelID:   channelID,
		Key:         base64.RawURLEncoding.EncodeToString(applicationServerKey),
	})
	if err != nil {
		return notify.Subscription{}, err
	}
	if reply.Status != 200 || reply.PushEndpoint == "" {
		return notify.Subscription{}, fmt.Errorf("register: status %d", reply.Status)
	}

	st, err := c.load(ctx)
	if err != nil {
		return notify.Subscription{}, err
	}
	st.ChannelID = channelID
	st.Endpoint = reply.PushEndpoint
	st.Private = base64.RawURLEncoding.EncodeToString(priv.Bytes())
	st.Auth = base64.RawURLEncoding.EncodeToString(auth)
	if err := c.store.Set(ctx, stateKey, st); err != nil {
		return notify.Subscription{}, fmt.Errorf("save subscription: %w", err)
	}

	c.log.Info().Ctx(ctx).Str("channel", channelID).Msg("push channel registered")
	return st.subscription()
}

// Unsubscribe drops the channel locally and tells the service when connected.
func (c *Client) Unsubscribe(ctx context.Context) error {
	st, err := c.load(ctx)
	if err != nil {
		return err
	}
	if st.ChannelID == "" {
		return nil
	}

	if _, err := c.connect(ctx); err != nil {
		c.log.Warn().Ctx(ctx).Err(err).Msg("unregister skipped, service unreachable")
	} else if _, err := c.request(ctx, message{MessageType: "unregister", ChannelID: st.ChannelID}); err != nil {
		c.log.Warn().Ctx(ctx).Err(err).Msg("unregister failed")
	}

	channel := st.ChannelID
	st.ChannelID, st.Endpoint, st.Private, st.Auth = "", "", "", ""
	if err := c.store.Set(ctx, stateKey, st); err != nil {
		return fmt.Errorf("clear subscription: %w", err)
	}
	c.log.Info().Ctx(ctx).Str("channel", channel).Msg("push channel unregistered")
	return nil
}

// Run keeps a connection open until ctx is done, reconnecting with
// exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	const maxBackoff = 5 * time.Minute
	backoff := time.Second

	for {
		done, err := c.connect(ctx)
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("push service connect failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		select {
		case <-ctx.Done():
			return c.Close()
		case <-done:
			c.log.Debug().Msg("push connection lost")
		}
	}
}

// Close sends a close frame and drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	_ = conn.Close()
	if err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return nil
}

// connect dials and completes the hello handshake unless already connected.
// The returned channel closes when the connection drops.
func (c *Client) connect(ctx context.Context) (<-chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.done, nil
	}

	st, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	hello := message{MessageType: "hello", UAID: st.UAID, UseWebPush: true}
	if st.ChannelID != "" {
		hello.ChannelIDs = []string{st.ChannelID}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("hello: %w", err)
	}

	var reply message
	_ = conn.SetReadDeadline(time.Now().Add(c.timeout))
	if err := conn.ReadJSON(&reply); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("hello reply: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	if reply.MessageType != "hello" || reply.Status != 200 || reply.UAID == "" {
		_ = conn.Close()
		return nil, fmt.Errorf("hello rejected: status %d", reply.Status)
	}

	if reply.UAID != st.UAID {
		if st.ChannelID != "" {
			c.log.Warn().Str("channel", st.ChannelID).Msg("push service issued a new id, subscription lost")
		}
		st = state{UAID: reply.UAID}
		if err := c.store.Set(ctx, stateKey, st); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("save uaid: %w", err)
		}
	}

	c.conn = conn
	c.done = make(chan struct{})
	go c.read(conn, c.done)
	go c.keepalive(conn, c.done)

	c.log.Debug().Str("uaid", reply.UAID).Msg("push service connected")
	return c.done, nil
}

func (c *Client) request(ctx context.Context, m message) (message, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	// Drop a reply that arrived after an earlier request timed out.
	select {
	case <-c.replies:
	default:
	}

	if err := c.write(m); err != nil {
		return message{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return message{}, fmt.Errorf("%s: %w", m.MessageType, ctx.Err())
		case reply := <-c.replies:
			if reply.MessageType == m.MessageType && reply.ChannelID == m.ChannelID {
				return reply, nil
			}
		}
	}
}

func (c *Client) write(m message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := conn.WriteJSON(m); err != nil {
		return fmt.Errorf("write %s: %w", m.MessageType, err)
	}
	return nil
}

func (c *Client) read(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()
		close(done)
	}()

	for {
		var m message
		if err := conn.ReadJSON(&m); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("push read ended")
			}
			return
		}

		switch m.MessageType {
		case "register", "unregister":
			select {
			case c.replies <- m:
			default:
			}
		case "notification":
			c.handleNotification(m)
		}
	}
}

func (c *Client) keepalive(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.ping)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(c.timeout))
			err := conn.WriteMessage(websocket.TextMessage, []byte("{}"))
			c.writeMu.Unlock()
			if err != nil {
				c.log.Debug().Err(err).Msg("push keepalive failed")
				return
			}
		}
	}
}

func (c *Client) handleNotification(m message) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	ctx = logging.WithSource(ctx, string(eventbus.SourcePush))

	code := c.deliver(ctx, m)
	err := c.write(message{
		MessageType: "ack",
		Updates:     []ackUpdate{{ChannelID: m.ChannelID, Version: m.Version, Code: code}},
	})
	if err != nil {
		c.log.Warn().Ctx(ctx).Err(err).Msg("push ack failed")
	}
}

// deliver decrypts m and publishes it, returning the ack code.
func (c *Client) deliver(ctx context.Context, m message) int {
	st, err := c.load(ctx)
	if err != nil {
		c.log.Error().Ctx(ctx).Err(err).Msg("load push keys")
		return ackOther
	}
	if m.ChannelID != st.ChannelID {
		c.log.Debug().Ctx(ctx).Str("channel", m.ChannelID).Msg("notification for unknown channel")
		return ackOther
	}

	var plain []byte
	if m.Data != "" {
		if enc := m.Headers["encoding"]; enc != "" && enc != "aes128gcm" {
			c.log.Warn().Ctx(ctx).Str("encoding", enc).Msg("unsupported push encoding")
			return ackDecrypt
		}
		keys, err := st.keys()
		if err != nil {
			c.log.Error().Ctx(ctx).Err(err).Msg("decode push keys")
			return ackDecrypt
		}
		body, err := decodeBase64(m.Data)
		if err != nil {
			c.log.Warn().Ctx(ctx).Err(err).Msg("push data is not base64")
			return ackDecrypt
		}
		plain, err = Decrypt(keys, body)
		if err != nil {
			c.log.Warn().Ctx(ctx).Err(err).Msg("push decrypt failed")
			return ackDecrypt
		}
	}

	if c.pub != nil {
		if err := c.pub.PublishBackgroundMessage(ctx, MessageFrom(plain)); err != nil {
			c.log.Warn().Ctx(ctx).Err(err).Msg("push message dropped")
			return ackOther
		}
	}
	return ackDelivered
}

// MessageFrom maps a decrypted push body onto a background message. Bodies
// carry {type, title, body, url, data}; title and body stand in for the
// sender and content when data omits them.
func MessageFrom(plain []byte) eventbus.BackgroundMessagePayload {
	var body struct {
		Type  string         `json:"type"`
		Title string         `json:"title"`
		Body  string         `json:"body"`
		URL   string         `json:"url"`
		Data  map[string]any `json:"data"`
	}
	if len(plain) > 0 {
		if err := json.Unmarshal(plain, &body); err != nil {
			body.Body = string(plain)
		}
	}

	data := map[string]any{}
	if body.Title != "" {
		data["senderName"] = body.Title
	}
	if body.Body != "" {
		data["content"] = body.Body
	}
	if body.URL != "" {
		data["url"] = body.URL
	}
	for k, v := range body.Data {
		data[k] = v
	}

	typ := body.Type
	if typ == "" {
		typ = eventbus.MessageNewMessage
	}
	return eventbus.BackgroundMessagePayload{Type: typ, Data: data}
}

func (c *Client) load(ctx context.Context) (state, error) {
	if c.store == nil {
		return state{}, nil
	}
	st, err := c.store.GetOr(ctx, stateKey, state{})
	if err != nil {
		return state{}, fmt.Errorf("load push state: %w", err)
	}
	return st, nil
}

func (s state) keys() (Keys, error) {
	raw, err := decodeBase64(s.Private)
	if err != nil {
		return Keys{}, fmt.Errorf("private key: %w", err)
	}
	priv, err := ecdh.P256().NewPrivateKey(raw)
	if err != nil {
		return Keys{}, fmt.Errorf("private key: %w", err)
	}
	auth, err := decodeBase64(s.Auth)
	if err != nil {
		return Keys{}, fmt.Errorf("auth secret: %w", err)
	}
	return Keys{Private: priv, Auth: auth}, nil
}

func (s state) subscription() (notify.Subscription, error) {
	keys, err := s.keys()
	if err != nil {
		return notify.Subscription{}, err
	}
	return notify.Subscription{
		Endpoint: s.Endpoint,
		Keys: notify.Keys{
			P256DH: base64.RawURLEncoding.EncodeToString(keys.Private.PublicKey().Bytes()),
			Auth:   s.Auth,
		},
	}, nil
}

// decodeBase64 accepts URL-safe base64 with or without padding.
func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
