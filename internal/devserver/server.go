// Package devserver is a local stand-in for the messaging server. It serves
// the poll and push registration endpoints over an in-memory message log.
package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/colonyops/cinq/internal/api"
	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/notify"
)

const userKey = "user_id"

// Message is a message delivered to a user.
type Message struct {
	ID         string    `json:"id"`
	To         string    `json:"to"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	IsPing     bool      `json:"isPing"`
	URL        string    `json:"url,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Claims identify the caller.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Options configure a Server.
type Options struct {
	Secret   string
	PollPath string
	PushPath string
	Now      func() time.Time
}

// Server holds messages and push subscriptions per user.
type Server struct {
	opts   Options
	router *gin.Engine
	log    zerolog.Logger

	mu       sync.Mutex
	messages []Message
	subs     map[string]map[string]notify.Subscription
}

// New builds the router.
func New(opts Options) (*Server, error) {
	if opts.Secret == "" {
		return nil, errors.New("devserver secret is required")
	}
	if opts.PollPath == "" {
		opts.PollPath = "/api/messages"
	}
	if opts.PushPath == "" {
		opts.PushPath = "/api/push-subscribe"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		opts: opts,
		log:  logging.Component("devserver"),
		subs: make(map[string]map[string]notify.Subscription),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := r.Group("/")
	authed.Use(s.auth())
	{
		authed.GET(opts.PollPath, s.poll)
		authed.POST(opts.PushPath, s.subscribe)
		authed.DELETE(opts.PushPath, s.unsubscribe)
		authed.POST("/api/dev/messages", s.inject)
	}

	s.router = r
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Token signs a bearer token for userID valid for ttl.
func (s *Server) Token(userID string, ttl time.Duration) (string, error) {
	now := s.opts.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "cinq-devserver",
			Subject:   userID,
		},
		UserID: userID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Deliver appends a message to the log.
func (s *Server) Deliver(m Message) Message {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.opts.Now().UTC()
	}

	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()

	s.log.Info().Str("to", m.To).Str("from", m.SenderName).Bool("ping", m.IsPing).Msg("message delivered")
	return m
}

// Subscriptions returns the registered subscriptions of userID.
func (s *Server) Subscriptions(userID string) []notify.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]notify.Subscription, 0, len(s.subs[userID]))
	for _, sub := range s.subs[userID] {
		out = append(out, sub)
	}
	slices.SortFunc(out, func(a, b notify.Subscription) int { return strings.Compare(a.Endpoint, b.Endpoint) })
	return out
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.Response{Error: "unauthorized"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return []byte(s.opts.Secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.opts.Now))
		if err != nil || !token.Valid || claims.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.Response{Error: "invalid session"})
			return
		}

		c.Set(userKey, claims.UserID)
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) poll(c *gin.Context) {
	user := c.GetString(userKey)

	var since time.Time
	if raw := c.Query("since"); raw != "" && raw != "0" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.Response{Error: "since must be epoch milliseconds"})
			return
		}
		since = time.UnixMilli(ms)
	}

	now := s.opts.Now()
	resp := api.PollResponse{ServerTime: api.ServerTime{Time: now}}

	s.mu.Lock()
	for _, m := range s.messages {
		if m.To != user || !m.CreatedAt.After(since) || m.CreatedAt.After(now) {
			continue
		}
		resp.NewCount++
		resp.LatestMessage = &api.LatestMessage{
			SenderName: m.SenderName,
			Content:    m.Content,
			IsPing:     m.IsPing,
			URL:        m.URL,
		}
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, resp)
}

func (s *Server) subscribe(c *gin.Context) {
	var req api.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Subscription.Endpoint == "" {
		c.JSON(http.StatusBadRequest, api.Response{Error: "invalid subscription"})
		return
	}

	user := c.GetString(userKey)
	s.mu.Lock()
	if s.subs[user] == nil {
		s.subs[user] = make(map[string]notify.Subscription)
	}
	s.subs[user][req.Subscription.Endpoint] = req.Subscription
	s.mu.Unlock()

	s.log.Info().Str("user", user).Str("endpoint", req.Subscription.Endpoint).Msg("push subscription registered")
	c.JSON(http.StatusOK, api.Response{Success: true, Message: "notifications enabled"})
}

// unsubscribe removes one endpoint, or every endpoint of the user when the
// body names none.
func (s *Server) unsubscribe(c *gin.Context) {
	var req api.UnsubscribeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, api.Response{Error: "invalid body"})
			return
		}
	}

	user := c.GetString(userKey)
	s.mu.Lock()
	if req.Endpoint == "" {
		delete(s.subs, user)
	} else {
		delete(s.subs[user], req.Endpoint)
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, api.Response{Success: true, Message: "notifications disabled"})
}

type injectRequest struct {
	To         string `json:"to"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
	IsPing     bool   `json:"isPing"`
	URL        string `json:"url"`
}

func (s *Server) inject(c *gin.Context) {
	var req injectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Response{Error: "invalid message"})
		return
	}
	if req.To == "" {
		req.To = c.GetString(userKey)
	}
	if req.SenderName == "" {
		req.SenderName = c.GetString(userKey)
	}
	if req.Content == "" && !req.IsPing {
		c.JSON(http.StatusBadRequest, api.Response{Error: "content is required"})
		return
	}

	m := s.Deliver(Message{
		To:         req.To,
		SenderName: req.SenderName,
		Content:    req.Content,
		IsPing:     req.IsPing,
		URL:        req.URL,
	})
	c.JSON(http.StatusCreated, m)
}
