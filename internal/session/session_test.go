package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/manor-backend/internal/engine"
	"github.com/DoyleJ11/manor-backend/pkg/types"
)

// helper: receive one message with a timeout so tests never hang
func recvMsg(t *testing.T, ch <-chan types.ServerMessage, within time.Duration) types.ServerMessage {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return msg
	case <-time.After(within):
		t.Fatalf("timed out waiting for message")
		return nil // unreachable
	}
}

func recvNoMsg(t *testing.T, ch <-chan types.ServerMessage, within time.Duration) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			// channel closed → no further messages possible
			return
		}
		t.Fatalf("expected no message within %v, but got: %+v", within, msg)
	case <-time.After(within):
		// good: nothing
	}
}

// recvState skips everything until the next state_update.
func recvState(t *testing.T, ch <-chan types.ServerMessage, within time.Duration) types.GameView {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case msg, ok := <-ch:
			require.True(t, ok, "client outbox closed unexpectedly")
			if su, ok := msg.(types.StateUpdate); ok {
				return su.Game
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state_update")
		}
	}
}

func getState(t *testing.T, s *Session) State {
	t.Helper()
	reply := make(chan State, 1)
	s.Inbox() <- GetState{Reply: reply}
	select {
	case st := <-reply:
		return st
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for state")
		return State{}
	}
}

func noPowers() engine.Rules {
	r := engine.DefaultRules()
	r.PowersEnabled = false
	return r
}

// newGame returns a lobby with survivor host s1 and killer k1.
func newGame(t *testing.T, start bool) *engine.Game {
	t.Helper()
	g, err := engine.NewGame("ABCD", "s1", "Sam", "", engine.RoleSurvivor, false, noPowers(), 1)
	require.NoError(t, err)
	_, err = engine.Apply(g, engine.Join{PlayerID: "k1", Name: "Kim", Role: engine.RoleKiller})
	require.NoError(t, err)
	if start {
		_, err = engine.Apply(g, engine.StartGame{})
		require.NoError(t, err)
	}
	return g
}

type fakeArchive struct {
	got chan engine.MatchSummary
}

func (f *fakeArchive) RecordMatch(_ context.Context, m engine.MatchSummary) error {
	f.got <- m
	return nil
}

func TestSession_Connect_SendsCurrentState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, newGame(t, false), Options{})

	out := make(chan types.ServerMessage, 4)
	require.NoError(t, s.Connect(ctx, "s1", out))

	msg := recvMsg(t, out, 100*time.Millisecond)
	su, ok := msg.(types.StateUpdate)
	require.True(t, ok, "want state_update, got %T", msg)
	assert.Equal(t, 0, su.Game.Version)
	assert.Equal(t, "lobby", su.Game.Phase)
	assert.Len(t, su.Game.Players, 2)
}

func TestSession_Run_BroadcastsNoticesThenState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, newGame(t, false), Options{})

	out := make(chan types.ServerMessage, 8)
	require.NoError(t, s.Connect(ctx, "s1", out))
	_ = recvMsg(t, out, 100*time.Millisecond)

	err := s.Run(ctx, "p3", engine.Join{PlayerID: "p3", Name: "Pat", Role: engine.RoleSurvivor})
	require.NoError(t, err)

	joined, ok := recvMsg(t, out, 100*time.Millisecond).(types.PlayerJoined)
	require.True(t, ok)
	assert.Equal(t, "p3", joined.Player.ID)

	view := recvState(t, out, 100*time.Millisecond)
	assert.Equal(t, 1, view.Version)
	assert.Len(t, view.Players, 3)
}

func TestSession_Run_ReturnsRejection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, newGame(t, true), Options{})

	err := s.Run(ctx, "late", engine.Join{PlayerID: "late", Name: "Late", Role: engine.RoleSurvivor})
	require.ErrorIs(t, err, engine.ErrAlreadyStarted)
	assert.Equal(t, 0, getState(t, s).Version)
}

func TestSession_RejectedSubmit_ErrorsOnlyTheSender(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, newGame(t, true), Options{})

	survivor := make(chan types.ServerMessage, 8)
	killer := make(chan types.ServerMessage, 8)
	require.NoError(t, s.Connect(ctx, "s1", survivor))
	require.NoError(t, s.Connect(ctx, "k1", killer))
	_ = recvMsg(t, survivor, 100*time.Millisecond)
	_ = recvMsg(t, killer, 100*time.Millisecond)

	require.NoError(t, s.Submit(ctx, "k1", engine.SelectRoom{PlayerID: "k1", Room: "Kitchen"}))

	msg := recvMsg(t, killer, 100*time.Millisecond)
	e, ok := msg.(types.Error)
	require.True(t, ok, "want error, got %T", msg)
	assert.Equal(t, engine.ErrNotYourTurn.Error(), e.Message)
	recvNoMsg(t, survivor, 100*time.Millisecond)
}

func TestSession_StateIsFilteredPerConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, newGame(t, true), Options{})

	survivor := make(chan types.ServerMessage, 16)
	killer := make(chan types.ServerMessage, 16)
	require.NoError(t, s.Connect(ctx, "s1", survivor))
	require.NoError(t, s.Connect(ctx, "k1", killer))
	_ = recvState(t, survivor, 100*time.Millisecond)
	_ = recvState(t, killer, 100*time.Millisecond)

	require.NoError(t, s.Run(ctx, "s1", engine.SelectRoom{PlayerID: "s1", Room: "Kitchen"}))

	sv := recvState(t, survivor, 100*time.Millisecond)
	kv := recvState(t, killer, 100*time.Millisecond)
	assert.Equal(t, "killer_selection", sv.Phase)
	assert.Equal(t, "Kitchen", sv.Players["s1"].CurrentRoom)
	assert.Empty(t, kv.Players["s1"].CurrentRoom)
}

func TestSession_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, newGame(t, false), Options{})

	out := make(chan types.ServerMessage, 1)
	require.NoError(t, s.Connect(ctx, "s1", out))

	require.NoError(t, s.Run(ctx, "p3", engine.Join{PlayerID: "p3", Name: "Pat", Role: engine.RoleSurvivor}))

	st := getState(t, s)
	assert.Equal(t, 0, st.NumClients, "expected slow client to be dropped")
	assert.Equal(t, 0, s.NumClients())
}

func TestSession_NewConnectionReplacesOld(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, newGame(t, false), Options{})

	first := make(chan types.ServerMessage, 4)
	second := make(chan types.ServerMessage, 4)
	require.NoError(t, s.Connect(ctx, "s1", first))
	_ = recvMsg(t, first, 100*time.Millisecond)
	require.NoError(t, s.Connect(ctx, "s1", second))
	_ = recvMsg(t, second, 100*time.Millisecond)

	_, open := <-first
	assert.False(t, open, "replaced outbox should be closed")

	// A late disconnect from the old socket must not evict the new one.
	s.Disconnect("s1", first)
	assert.Equal(t, 1, getState(t, s).NumClients)
}

func TestSession_TurnTimeoutForcesDefaults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, newGame(t, true), Options{TurnTimeout: 30 * time.Millisecond})

	require.Eventually(t, func() bool {
		reply := make(chan State, 1)
		s.Inbox() <- GetState{Reply: reply}
		st := <-reply
		return st.Turn >= 2 || st.Phase == engine.PhaseGameOver
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSession_TimerGen_DropsStaleFires(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, newGame(t, true), Options{TurnTimeout: time.Hour})

	require.NoError(t, s.Run(ctx, "s1", engine.SelectRoom{PlayerID: "s1", Room: "Kitchen"}))
	require.Equal(t, 1, getState(t, s).Version)

	// Fired for the survivors' phase, which already ended.
	s.Inbox() <- TimerFired{Gen: 0, Turn: 1, Phase: engine.PhaseSurvivorSelection}

	st := getState(t, s)
	assert.Equal(t, 1, st.Version)
	assert.Equal(t, engine.PhaseKillerSelection, st.Phase)
}

func TestSession_ArchivesFinishedMatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	archive := &fakeArchive{got: make(chan engine.MatchSummary, 1)}
	s := New(ctx, newGame(t, true), Options{Archive: archive})

	require.NoError(t, s.Run(ctx, "s1", engine.SelectRoom{PlayerID: "s1", Room: "Kitchen"}))
	require.NoError(t, s.Run(ctx, "k1", engine.SelectRoom{PlayerID: "k1", Room: "Kitchen"}))

	select {
	case m := <-archive.got:
		assert.Equal(t, "ABCD", m.SessionID)
		assert.NotEqual(t, engine.WinnerNone, m.Winner)
		assert.Len(t, m.Players, 2)
	case <-time.After(time.Second):
		t.Fatalf("finished match was not archived")
	}
}

func TestSession_Shutdown_ClosesOutboxes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, newGame(t, false), Options{})

	out := make(chan types.ServerMessage, 4)
	require.NoError(t, s.Connect(ctx, "s1", out))
	_ = recvMsg(t, out, 100*time.Millisecond)

	s.Inbox() <- Shutdown{}

	select {
	case <-s.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("session did not stop")
	}
	recvNoMsg(t, out, 100*time.Millisecond)
	require.ErrorIs(t, s.Run(ctx, "s1", engine.StartGame{}), ErrClosed)
}
