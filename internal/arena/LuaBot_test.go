package arena

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Mshel/cycles/internal/engine"
	"github.com/Mshel/cycles/internal/game"
	"github.com/stretchr/testify/require"
)

const wallHugger = `
local order = {"north", "east", "south", "west"}
local deltas = {north = {0, -1}, east = {1, 0}, south = {0, 1}, west = {-1, 0}}

function decide(state)
	for _, dir in ipairs(order) do
		local d = deltas[dir]
		if is_free(state.me.x + d[1], state.me.y + d[2]) then
			return dir
		end
	end
	return "north"
end
`

func TestLuaBotCallsScript(t *testing.T) {
	bot, err := NewLuaBot("A", wallHugger, quietLogger())
	require.NoError(t, err)
	defer bot.Close()

	state, err := game.ParseBoard(0,
		"a..",
		"aA.",
		"...",
	)
	require.NoError(t, err)

	dir, err := bot.Decide(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, game.North, dir)

	state, err = game.ParseBoard(1,
		".a.",
		".Aa",
		"...",
	)
	require.NoError(t, err)
	dir, err = bot.Decide(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, game.South, dir)
}

func TestLuaBotSeesRoster(t *testing.T) {
	bot, err := NewLuaBot("B", `
function decide(state)
	if #state.players == 2 and state.players[1].name == "A" and state.width == 4 and state.frame == 9 then
		return "west"
	end
	return "east"
end`, quietLogger())
	require.NoError(t, err)
	defer bot.Close()

	state, err := game.ParseBoard(9, "A..B")
	require.NoError(t, err)

	dir, err := bot.Decide(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, game.West, dir)
}

func TestLuaBotErrors(t *testing.T) {
	state, err := game.ParseBoard(0, "A..")
	require.NoError(t, err)

	_, err = NewLuaBot("A", "function decide(", quietLogger())
	require.ErrorContains(t, err, "could not parse")

	_, err = NewLuaBot("A", "x = 1", quietLogger())
	require.ErrorContains(t, err, "does not define decide")

	bot, err := NewLuaBot("A", `function decide(state) return {1} end`, quietLogger())
	require.NoError(t, err)
	_, err = bot.Decide(context.Background(), state)
	require.ErrorContains(t, err, "expected string")

	bot, err = NewLuaBot("A", `function decide(state) return "up-left" end`, quietLogger())
	require.NoError(t, err)
	_, err = bot.Decide(context.Background(), state)
	require.Error(t, err)

	bot, err = NewLuaBot("A", `function decide(state) error("boom") end`, quietLogger())
	require.NoError(t, err)
	_, err = bot.Decide(context.Background(), state)
	require.ErrorContains(t, err, "boom")

	bot, err = NewLuaBot("Z", `function decide(state) return "north" end`, quietLogger())
	require.NoError(t, err)
	_, err = bot.Decide(context.Background(), state)
	require.ErrorIs(t, err, engine.ErrSelfNotFound)
}

func TestLuaBotSandbox(t *testing.T) {
	bot, err := NewLuaBot("A", `
function decide(state)
	if io == nil and os == nil and dofile == nil then
		return "east"
	end
	return "west"
end`, quietLogger())
	require.NoError(t, err)
	defer bot.Close()

	state, err := game.ParseBoard(0, "A..")
	require.NoError(t, err)
	dir, err := bot.Decide(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, game.East, dir)
}

func TestLuaBotStopsAtDeadline(t *testing.T) {
	bot, err := NewLuaBot("A", `function decide(state) while true do end end`, quietLogger())
	require.NoError(t, err)
	defer bot.Close()

	state, err := game.ParseBoard(0, "A..")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = bot.Decide(ctx, state)
	require.Error(t, err)
}

func TestNewLuaBotFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hugger.lua")
	require.NoError(t, os.WriteFile(path, []byte(wallHugger), 0o644))

	bot, err := NewLuaBotFromFile("A", path, quietLogger())
	require.NoError(t, err)
	bot.Close()

	_, err = NewLuaBotFromFile("A", filepath.Join(t.TempDir(), "missing.lua"), quietLogger())
	require.Error(t, err)
}
