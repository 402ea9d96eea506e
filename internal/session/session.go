// Package session keeps per-browser state (the connected wallet and pending
// flash messages) on the server, keyed by a random cookie.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	CookieName = "tweetpulse_session"

	contextKey = "tweetpulse.session"
)

type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

type data struct {
	wallet   string
	flashes  []Flash
	lastSeen time.Time
}

// Manager owns every live session. Sessions idle for longer than ttl are dropped.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*data
	ttl      time.Duration
	secure   bool
	now      func() time.Time
}

func NewManager(ttl time.Duration, secureCookie bool) *Manager {
	return &Manager{
		sessions: make(map[string]*data),
		ttl:      ttl,
		secure:   secureCookie,
		now:      time.Now,
	}
}

type handle struct {
	m  *Manager
	id string
}

// Middleware loads the caller's session, creating one and setting the cookie
// when the request has none or an unknown one.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(CookieName)
		if err != nil || !m.touch(id) {
			id = m.create()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     CookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(contextKey, &handle{m: m, id: id})
		c.Next()
	}
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	now := m.now()
	if m.ttl > 0 && now.Sub(s.lastSeen) > m.ttl {
		delete(m.sessions, id)
		return false
	}
	s.lastSeen = now
	return true
}

func (m *Manager) create() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if m.ttl > 0 {
		for id, s := range m.sessions {
			if now.Sub(s.lastSeen) > m.ttl {
				delete(m.sessions, id)
			}
		}
	}
	id := uuid.NewString()
	m.sessions[id] = &data{lastSeen: now}
	return id
}

func (m *Manager) with(id string, fn func(*data)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = &data{lastSeen: m.now()}
		m.sessions[id] = s
	}
	fn(s)
}

func current(c *gin.Context) *handle {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil
	}
	h, _ := v.(*handle)
	return h
}

// Wallet is the session's active wallet, or "" when none is connected or the
// middleware did not run.
func Wallet(c *gin.Context) string {
	h := current(c)
	if h == nil {
		return ""
	}
	var wallet string
	h.m.with(h.id, func(s *data) { wallet = s.wallet })
	return wallet
}

func SetWallet(c *gin.Context, address string) {
	if h := current(c); h != nil {
		h.m.with(h.id, func(s *data) { s.wallet = address })
	}
}

// ClearWallet forgets the active wallet and returns the one that was set.
func ClearWallet(c *gin.Context) string {
	var previous string
	if h := current(c); h != nil {
		h.m.with(h.id, func(s *data) {
			previous = s.wallet
			s.wallet = ""
		})
	}
	return previous
}

func AddFlash(c *gin.Context, category, message string) {
	if h := current(c); h != nil {
		h.m.with(h.id, func(s *data) { s.flashes = append(s.flashes, Flash{Category: category, Message: message}) })
	}
}

// Flashes returns and clears the pending messages.
func Flashes(c *gin.Context) []Flash {
	var out []Flash
	if h := current(c); h != nil {
		h.m.with(h.id, func(s *data) {
			out = s.flashes
			s.flashes = nil
		})
	}
	return out
}
