package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/manor-backend/internal/engine"
	"github.com/DoyleJ11/manor-backend/pkg/types"
)

var ErrClosed = errors.New("session closed")

type Msg interface{ isSessionMsg() }

// Connect registers a player's live connection. A newer connection for the
// same player replaces the old one, whose outbox is closed.
type Connect struct {
	PlayerID string
	Outbox   chan types.ServerMessage
}

func (Connect) isSessionMsg() {}

// Disconnect removes a connection, unless it was already replaced.
type Disconnect struct {
	PlayerID string
	Outbox   chan types.ServerMessage
}

func (Disconnect) isSessionMsg() {}

// Do runs one engine command on behalf of PlayerID. With a nil Reply a
// rejection is sent back to the player's connection as an error message.
type Do struct {
	PlayerID string
	Cmd      engine.Command
	Reply    chan error
}

func (Do) isSessionMsg() {}

type GetView struct {
	ViewerID string
	Reply    chan types.GameView
}

func (GetView) isSessionMsg() {}

type HasPlayer struct {
	PlayerID string
	Reply    chan bool
}

func (HasPlayer) isSessionMsg() {}

// GetState reflects internal bookkeeping without data races. Used by tests.
type GetState struct {
	Reply chan State
}

func (GetState) isSessionMsg() {}

type TimerFired struct {
	Gen   uint64
	Turn  int
	Phase engine.Phase
}

func (TimerFired) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type State struct {
	Version    int
	NumClients int
	Phase      engine.Phase
	Turn       int
}

// Archive stores finished matches.
type Archive interface {
	RecordMatch(ctx context.Context, m engine.MatchSummary) error
}

type Options struct {
	// TurnTimeout forces default actions when a selection phase outlasts
	// it. Zero disables the timer.
	TurnTimeout time.Duration
	Archive     Archive
}

type Session struct {
	ID string

	inbox    chan Msg
	game     *engine.Game
	version  int
	clients  map[string]chan types.ServerMessage
	opts     Options
	archived bool

	timer      *time.Timer
	timerGen   uint64
	timerTurn  int
	timerPhase engine.Phase

	lastActive atomic.Int64
	numClients atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, g *engine.Game, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		ID:      g.ID,
		inbox:   make(chan Msg, 64),
		game:    g,
		clients: make(map[string]chan types.ServerMessage),
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.touch()
	s.armTimer()

	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Connect:
				if old, ok := s.clients[msg.PlayerID]; ok && old != msg.Outbox {
					close(old)
				}
				s.clients[msg.PlayerID] = msg.Outbox
				s.numClients.Store(int32(len(s.clients)))
				s.touch()
				s.send(msg.PlayerID, msg.Outbox, types.StateUpdate{Game: engine.View(s.game, msg.PlayerID, s.version)})
				zap.L().Info("player connected",
					zap.String("session_id", s.ID),
					zap.String("player_id", msg.PlayerID),
				)

			case Disconnect:
				if ch, ok := s.clients[msg.PlayerID]; ok && ch == msg.Outbox {
					close(ch)
					delete(s.clients, msg.PlayerID)
					s.numClients.Store(int32(len(s.clients)))
					zap.L().Info("player disconnected",
						zap.String("session_id", s.ID),
						zap.String("player_id", msg.PlayerID),
					)
				}
				s.touch()

			case Do:
				s.apply(msg)

			case GetView:
				msg.Reply <- engine.View(s.game, msg.ViewerID, s.version)

			case HasPlayer:
				_, ok := s.game.Players[msg.PlayerID]
				msg.Reply <- ok

			case GetState:
				msg.Reply <- State{
					Version:    s.version,
					NumClients: len(s.clients),
					Phase:      s.game.Phase,
					Turn:       s.game.Turn,
				}

			case TimerFired:
				if msg.Gen != s.timerGen {
					// stale: the phase it was armed for already ended
					break
				}
				s.timer = nil
				s.apply(Do{Cmd: engine.Timeout{Turn: msg.Turn, Phase: msg.Phase}})

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) apply(msg Do) {
	notices, err := engine.Apply(s.game, msg.Cmd)
	if err != nil {
		zap.L().Debug("command rejected",
			zap.String("session_id", s.ID),
			zap.String("player_id", msg.PlayerID),
			zap.String("phase", string(s.game.Phase)),
			zap.Error(err),
		)
		if msg.Reply != nil {
			msg.Reply <- err
		} else if ch, ok := s.clients[msg.PlayerID]; ok {
			s.send(msg.PlayerID, ch, types.Error{Message: err.Error()})
		}
		return
	}
	if msg.Reply != nil {
		msg.Reply <- nil
	}

	s.version++
	s.touch()
	s.fanOut(notices)
	s.broadcastState()
	s.armTimer()
	s.archiveIfOver()
}

// fanOut delivers each notice to the connections its audience admits.
func (s *Session) fanOut(notices []engine.Notice) {
	for _, n := range notices {
		for id, ch := range s.clients {
			if n.To.Admits(s.game.Players[id]) {
				s.send(id, ch, n.Msg)
			}
		}
	}
}

// broadcastState sends every connection its own filtered view.
func (s *Session) broadcastState() {
	for id, ch := range s.clients {
		s.send(id, ch, types.StateUpdate{Game: engine.View(s.game, id, s.version)})
	}
}

func (s *Session) send(id string, ch chan types.ServerMessage, msg types.ServerMessage) {
	if cur, ok := s.clients[id]; !ok || cur != ch {
		return
	}
	select {
	case ch <- msg:
		// ok
	default:
		// Client is slow/full - drop them.
		close(ch)
		delete(s.clients, id)
		s.numClients.Store(int32(len(s.clients)))
		zap.L().Warn("dropping slow client",
			zap.String("session_id", s.ID),
			zap.String("player_id", id),
		)
	}
}

// armTimer keeps one timer per (turn, phase) while a selection phase is open.
func (s *Session) armTimer() {
	if s.opts.TurnTimeout <= 0 {
		return
	}
	turn, phase := s.game.Turn, s.game.Phase
	if s.timer != nil && turn == s.timerTurn && phase == s.timerPhase {
		return
	}
	s.stopTimer()
	if !phase.IsSelection() {
		return
	}

	gen := s.timerGen
	s.timerTurn, s.timerPhase = turn, phase
	s.timer = time.AfterFunc(s.opts.TurnTimeout, func() {
		select {
		case s.inbox <- TimerFired{Gen: gen, Turn: turn, Phase: phase}:
		case <-s.ctx.Done():
		}
	})
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

func (s *Session) archiveIfOver() {
	if s.game.Phase != engine.PhaseGameOver {
		s.archived = false
		return
	}
	if s.archived || s.opts.Archive == nil {
		return
	}
	s.archived = true

	summary := engine.Summarize(s.game)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.opts.Archive.RecordMatch(ctx, summary); err != nil {
			zap.L().Warn("failed to archive match",
				zap.String("session_id", summary.SessionID),
				zap.Error(err),
			)
		}
	}()
}

func (s *Session) shutdown() {
	s.stopTimer()
	for id, ch := range s.clients {
		close(ch) // Tell client no more messages
		delete(s.clients, id)
	}
	s.numClients.Store(0)
	s.cancel()
}

func (s *Session) touch() { s.lastActive.Store(time.Now().UnixNano()) }

// Inbox exposes the actor's mailbox to the HTTP and WS layers.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Done is closed once the actor has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Close() { s.cancel() }

func (s *Session) LastActive() time.Time { return time.Unix(0, s.lastActive.Load()) }

func (s *Session) NumClients() int { return int(s.numClients.Load()) }

func (s *Session) post(ctx context.Context, m Msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// Run applies cmd on behalf of playerID and waits for the verdict.
func (s *Session) Run(ctx context.Context, playerID string, cmd engine.Command) error {
	reply := make(chan error, 1)
	if err := s.post(ctx, Do{PlayerID: playerID, Cmd: cmd, Reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) View(ctx context.Context, viewerID string) (types.GameView, error) {
	reply := make(chan types.GameView, 1)
	if err := s.post(ctx, GetView{ViewerID: viewerID, Reply: reply}); err != nil {
		return types.GameView{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return types.GameView{}, ctx.Err()
	case <-s.done:
		return types.GameView{}, ErrClosed
	}
}

func (s *Session) HasPlayer(ctx context.Context, playerID string) (bool, error) {
	reply := make(chan bool, 1)
	if err := s.post(ctx, HasPlayer{PlayerID: playerID, Reply: reply}); err != nil {
		return false, err
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-s.done:
		return false, ErrClosed
	}
}

// Submit queues a command from a live connection; rejections come back on
// that connection.
func (s *Session) Submit(ctx context.Context, playerID string, cmd engine.Command) error {
	return s.post(ctx, Do{PlayerID: playerID, Cmd: cmd})
}

func (s *Session) Connect(ctx context.Context, playerID string, outbox chan types.ServerMessage) error {
	return s.post(ctx, Connect{PlayerID: playerID, Outbox: outbox})
}

func (s *Session) Disconnect(playerID string, outbox chan types.ServerMessage) {
	_ = s.post(context.Background(), Disconnect{PlayerID: playerID, Outbox: outbox})
}
