package hub

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/manor-backend/internal/engine"
	"github.com/DoyleJ11/manor-backend/internal/session"
)

const (
	codeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength = 4
)

func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		if err != nil {
			return "", err
		}
		code[i] = codeChars[num.Int64()]
	}
	return string(code), nil
}

// NormalizeCode makes share codes case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type HubMsg interface{ isHubMsg() }

// CreateSession opens a lobby under a fresh share code with the host as its
// first player.
type CreateSession struct {
	HostID     string
	HostName   string
	HostAvatar string
	HostRole   engine.Role
	Conspiracy bool
	Reply      chan Created
}

type Created struct {
	Session *session.Session
	Err     error
}

type GetSession struct {
	Code  string
	Reply chan *session.Session
}

type RemoveSession struct {
	Code string
}

// Sweep closes sessions idle for longer than the TTL with nobody connected.
type Sweep struct {
	Now   time.Time
	Reply chan int // number of sessions removed, may be nil
}

type ShutdownHub struct{}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (Sweep) isHubMsg()         {}
func (ShutdownHub) isHubMsg()   {}

type Options struct {
	Rules   engine.Rules
	Session session.Options
	// Seed makes session RNGs reproducible; zero draws a random seed per
	// session.
	Seed          uint64
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	opts     Options
	created  uint64
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)

	var sweep <-chan time.Time
	if h.opts.SweepInterval > 0 && h.opts.IdleTTL > 0 {
		ticker := time.NewTicker(h.opts.SweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case now := <-sweep:
			h.sweep(now)

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				msg.Reply <- h.create(msg)

			case GetSession:
				msg.Reply <- h.sessions[NormalizeCode(msg.Code)] // May be nil

			case RemoveSession:
				if s := h.sessions[NormalizeCode(msg.Code)]; s != nil {
					s.Close()
					delete(h.sessions, NormalizeCode(msg.Code))
				}

			case Sweep:
				n := h.sweep(msg.Now)
				if msg.Reply != nil {
					msg.Reply <- n
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateSession) Created {
	var code string
	for {
		c, err := GenerateCode()
		if err != nil {
			return Created{Err: fmt.Errorf("generate share code: %w", err)}
		}
		if h.sessions[c] == nil {
			code = c
			break
		}
		zap.L().Debug("collision on code, regenerating", zap.String("code", c))
	}

	h.created++
	seed := mrand.Uint64()
	if h.opts.Seed != 0 {
		seed = h.opts.Seed + h.created
	}
	g, err := engine.NewGame(code, msg.HostID, msg.HostName, msg.HostAvatar, msg.HostRole, msg.Conspiracy, h.opts.Rules, seed)
	if err != nil {
		return Created{Err: err}
	}

	s := session.New(h.ctx, g, h.opts.Session)
	h.sessions[code] = s
	zap.L().Info("session created",
		zap.String("session_id", code),
		zap.String("player_id", msg.HostID),
		zap.Bool("conspiracy", msg.Conspiracy),
	)
	return Created{Session: s}
}

func (h *Hub) sweep(now time.Time) int {
	removed := 0
	for code, s := range h.sessions {
		if s.NumClients() > 0 || now.Sub(s.LastActive()) <= h.opts.IdleTTL {
			continue
		}
		s.Close()
		delete(h.sessions, code)
		removed++
		zap.L().Info("removed idle session", zap.String("session_id", code))
	}
	return removed
}

func (h *Hub) shutdown() {
	for code, s := range h.sessions {
		s.Close()
		delete(h.sessions, code)
	}
	h.cancel()
}

// Create runs CreateSession and waits for the result.
func (h *Hub) Create(ctx context.Context, msg CreateSession) (*session.Session, error) {
	msg.Reply = make(chan Created, 1)
	select {
	case h.inbox <- msg:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-msg.Reply:
		return res.Session, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get looks a session up by share code; it returns engine.ErrSessionNotFound
// for unknown codes.
func (h *Hub) Get(ctx context.Context, code string) (*session.Session, error) {
	reply := make(chan *session.Session, 1)
	select {
	case h.inbox <- GetSession{Code: code, Reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case s := <-reply:
		if s == nil {
			return nil, engine.ErrSessionNotFound
		}
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
