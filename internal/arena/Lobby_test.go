package arena

import (
	"context"
	"math/rand"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Mshel/cycles/internal/bot"
	"github.com/Mshel/cycles/internal/engine"
	"github.com/Mshel/cycles/internal/transport"
	"github.com/stretchr/testify/require"
)

func TestLobbyResidentsAndNames(t *testing.T) {
	lobby := NewLobby(2, 3, quietLogger())

	require.NoError(t, lobby.AddResident(&scriptedAgent{name: "ada"}))
	require.ErrorIs(t, lobby.AddResident(&scriptedAgent{name: "ada"}), ErrNameTaken)
	require.ErrorIs(t, lobby.Admit("ada"), ErrNameTaken)

	require.NoError(t, lobby.Admit("zed"))
	require.ErrorIs(t, lobby.Admit("zed"), ErrNameTaken, "admitted names are reserved")

	require.NoError(t, lobby.AddResident(&scriptedAgent{name: "bob"}))
	agents, err := lobby.NextMatch(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 2)
	require.Equal(t, "ada", agents[0].Name())

	lobby.Close()
	_, err = lobby.NextMatch(context.Background())
	require.ErrorIs(t, err, ErrLobbyClosed)
	require.ErrorIs(t, lobby.Admit("new"), ErrLobbyClosed)
}

func TestLobbyWaitsForPlayers(t *testing.T) {
	lobby := NewLobby(2, 4, quietLogger())
	require.NoError(t, lobby.AddResident(&scriptedAgent{name: "ada"}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := lobby.NextMatch(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan []Agent, 1)
	go func() {
		agents, _ := lobby.NextMatch(context.Background())
		done <- agents
	}()

	require.NoError(t, lobby.AddResident(&scriptedAgent{name: "bob"}))
	select {
	case agents := <-done:
		require.Len(t, agents, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("lobby never filled")
	}
}

// TestRemoteBotPlaysAMatch runs a house bot against a bot connected over a
// websocket, each driven by its own decision engine.
func TestRemoteBotPlaysAMatch(t *testing.T) {
	config := DefaultConfig()
	config.Match = MatchConfig{Width: 10, Height: 8, MaxPlayers: 2, MaxFrames: 200, MoveTimeout: 2 * time.Second}
	config.Intermission = time.Millisecond
	config.ReplayDir = t.TempDir()

	lobby := NewLobby(2, 2, quietLogger())
	house, err := NewHouseBot("house", engine.DefaultConfig(), rand.New(rand.NewSource(5)), quietLogger())
	require.NoError(t, err)
	require.NoError(t, lobby.AddResident(house))

	srv := httptest.NewServer(transport.NewServer(lobby, quietLogger()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := transport.Connect(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "remote", quietLogger())
	require.NoError(t, err)
	defer client.Close()

	remoteEngine, err := engine.NewDecisionEngine("remote", engine.DefaultConfig(), rand.New(rand.NewSource(6)), quietLogger())
	require.NoError(t, err)

	type runOutcome struct {
		stats bot.Stats
		err   error
	}
	outcome := make(chan runOutcome, 1)
	go func() {
		stats, err := bot.NewRunner(client, remoteEngine, quietLogger()).Run(ctx)
		outcome <- runOutcome{stats, err}
	}()

	store := newTestStore(t)
	broadcaster := NewBroadcaster(quietLogger())
	frames, unsubscribe := broadcaster.Subscribe()
	defer unsubscribe()

	a := NewArena(config, lobby, store, broadcaster, rand.New(rand.NewSource(9)), quietLogger())
	result, err := a.RunMatch(ctx)
	require.NoError(t, err)
	require.Len(t, result.Placements, 2)

	got := <-outcome
	if got.err != nil {
		// a boxed in bot stops playing before the result arrives
		require.ErrorIs(t, got.err, engine.ErrRetryExhausted)
	} else {
		require.Positive(t, got.stats.Moves)
		require.False(t, client.IsActive())
		require.NotNil(t, client.Result())
		require.Equal(t, result.MatchID, client.Result().MatchID)
		require.Equal(t, result.Winner, client.Result().Winner)
	}

	total, err := store.TotalMatches(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, total)

	first := <-frames
	require.Equal(t, result.MatchID, first.MatchID)

	replay, err := ReadReplay(filepath.Join(config.ReplayDir, "replay_"+result.MatchID+".parquet"))
	require.NoError(t, err)
	require.NotEmpty(t, replay)
}
