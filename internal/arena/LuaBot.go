package arena

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Mshel/cycles/internal/engine"
	"github.com/Mshel/cycles/internal/game"
	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"
)

const luaDecideFunction = "decide"

// LuaBot runs a script that defines decide(state) and returns "north",
// "east", "south" or "west". The script may call is_free(x, y).
//
// state has the fields frame, width, height, me = {name, x, y, color} and
// players, a list of the same shape. Coordinates are zero based with y
// growing south.
type LuaBot struct {
	name   string
	state  *lua.LState
	grid   *game.Grid
	logger *log.Logger
}

func NewLuaBotFromFile(name string, path string, logger *log.Logger) (*LuaBot, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lua bot %s: read script: %w", name, err)
	}
	return NewLuaBot(name, string(source), logger)
}

func NewLuaBot(name string, source string, logger *log.Logger) (*LuaBot, error) {
	if logger == nil {
		logger = log.Default()
	}

	bot := &LuaBot{
		name:   name,
		state:  newSandbox(),
		logger: logger.With("bot", name),
	}
	bot.state.SetGlobal("is_free", bot.state.NewFunction(bot.isFree))

	if err := bot.state.DoString(source); err != nil {
		bot.state.Close()
		return nil, fmt.Errorf("lua bot %s: could not parse strategy: %w", name, err)
	}
	if bot.state.GetGlobal(luaDecideFunction).Type() != lua.LTFunction {
		bot.state.Close()
		return nil, fmt.Errorf("lua bot %s: script does not define %s(state)", name, luaDecideFunction)
	}

	return bot, nil
}

// newSandbox opens the libraries a strategy needs and nothing that touches
// the host.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, unsafe := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(unsafe, lua.LNil)
	}
	return L
}

func (b *LuaBot) Name() string { return b.name }

func (b *LuaBot) Decide(ctx context.Context, state game.GameState) (game.Direction, error) {
	self, ok := state.FindPlayer(b.name)
	if !ok {
		return game.NoDirection, engine.ErrSelfNotFound
	}

	b.grid = state.Grid
	defer func() { b.grid = nil }()

	b.state.SetContext(ctx)
	defer b.state.RemoveContext()

	err := b.state.CallByParam(lua.P{
		Fn:      b.state.GetGlobal(luaDecideFunction),
		NRet:    1,
		Protect: true,
	}, b.stateTable(state, self))
	if err != nil {
		return game.NoDirection, fmt.Errorf("could not execute lua strategy: %w", err)
	}

	ret := b.state.Get(-1)
	b.state.Pop(1)

	name, ok := ret.(lua.LString)
	if !ok {
		return game.NoDirection, errors.New("lua return value was type " + ret.Type().String() + ", expected string")
	}
	return game.ParseDirection(string(name))
}

// Close releases the interpreter.
func (b *LuaBot) Close() {
	b.state.Close()
}

func (b *LuaBot) stateTable(state game.GameState, self game.Player) *lua.LTable {
	L := b.state

	tbl := L.NewTable()
	tbl.RawSetString("frame", lua.LNumber(state.Frame))
	tbl.RawSetString("width", lua.LNumber(state.Grid.Width))
	tbl.RawSetString("height", lua.LNumber(state.Grid.Height))
	tbl.RawSetString("me", playerTable(L, self))

	players := L.NewTable()
	for _, p := range state.Players {
		players.Append(playerTable(L, p))
	}
	tbl.RawSetString("players", players)
	return tbl
}

func playerTable(L *lua.LState, p game.Player) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("name", lua.LString(p.Name))
	tbl.RawSetString("x", lua.LNumber(p.Head.X))
	tbl.RawSetString("y", lua.LNumber(p.Head.Y))
	tbl.RawSetString("color", lua.LNumber(p.Color))
	return tbl
}

func (b *LuaBot) isFree(L *lua.LState) int {
	c := game.Coordinate{X: L.CheckInt(1), Y: L.CheckInt(2)}
	L.Push(lua.LBool(b.grid != nil && b.grid.IsFree(c)))
	return 1
}
