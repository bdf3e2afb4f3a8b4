package arena

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Mshel/cycles/internal/game"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// ReplayRow is one player on one frame.
type ReplayRow struct {
	MatchID   string `parquet:"match_id,dict"`
	Frame     int32  `parquet:"frame"`
	Width     int32  `parquet:"width"`
	Height    int32  `parquet:"height"`
	Player    string `parquet:"player,dict"`
	Color     int32  `parquet:"color"`
	X         int32  `parquet:"x"`
	Y         int32  `parquet:"y"`
	Direction string `parquet:"direction,dict"`
	// Alive is false on the frame whose move eliminated the player.
	Alive bool `parquet:"alive"`
}

// ReplayRecorder writes a match to replay_<match id>.parquet. Rows go to a
// file under tmp/ that Finalize moves into place.
type ReplayRecorder struct {
	tmpPath string
	outPath string

	file   *os.File
	writer *parquet.GenericWriter[ReplayRow]

	rows int
	err  error
}

func NewReplayRecorder(outDir string, matchID string) (*ReplayRecorder, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}

	absOut, err := filepath.Abs(outDir)
	if err != nil {
		absOut = outDir
	}
	tmpDir := filepath.Join(absOut, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("replay_%s.parquet", matchID)
	tmpPath := filepath.Join(tmpDir, name)

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open tmp parquet: %w", err)
	}

	w := parquet.NewGenericWriter[ReplayRow](
		f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	w.SetKeyValueMetadata("schema", "replay_row_v1")
	w.SetKeyValueMetadata("match_id", matchID)

	return &ReplayRecorder{
		tmpPath: tmpPath,
		outPath: filepath.Join(absOut, name),
		file:    f,
		writer:  w,
	}, nil
}

func (r *ReplayRecorder) OutPath() string { return r.outPath }

// OnFrame records every player of the frame. Write errors are kept and
// reported by Finalize.
func (r *ReplayRecorder) OnFrame(frame Frame) {
	if r.err != nil || r.writer == nil || frame.State.Grid == nil {
		return
	}

	eliminated := make(map[string]bool, len(frame.Eliminated))
	for _, name := range frame.Eliminated {
		eliminated[name] = true
	}

	rows := make([]ReplayRow, 0, len(frame.State.Players))
	for _, p := range frame.State.Players {
		direction, ok := frame.Moves[p.Name]
		if !ok {
			direction = game.NoDirection
		}
		rows = append(rows, ReplayRow{
			MatchID:   frame.MatchID,
			Frame:     int32(frame.State.Frame),
			Width:     int32(frame.State.Grid.Width),
			Height:    int32(frame.State.Grid.Height),
			Player:    p.Name,
			Color:     int32(p.Color),
			X:         int32(p.Head.X),
			Y:         int32(p.Head.Y),
			Direction: direction.String(),
			Alive:     !eliminated[p.Name],
		})
	}
	if len(rows) == 0 {
		return
	}

	if _, err := r.writer.Write(rows); err != nil {
		r.err = fmt.Errorf("write replay rows: %w", err)
		return
	}
	r.rows += len(rows)
}

// Finalize closes the parquet writer and moves the file out of tmp/. If no
// rows were written the tmp file is removed and outPath is empty.
func (r *ReplayRecorder) Finalize() (outPath string, rows int, err error) {
	if r.writer == nil && r.file == nil {
		return "", 0, r.err
	}

	var closeErr error
	if r.writer != nil {
		closeErr = r.writer.Close()
		r.writer = nil
	}
	var fileErr error
	if r.file != nil {
		_ = r.file.Sync()
		fileErr = r.file.Close()
		r.file = nil
	}

	switch {
	case r.err != nil:
		_ = os.Remove(r.tmpPath)
		return "", 0, r.err
	case closeErr != nil:
		return "", 0, fmt.Errorf("close parquet writer: %w", closeErr)
	case fileErr != nil:
		return "", 0, fmt.Errorf("close parquet file: %w", fileErr)
	}

	if r.rows == 0 {
		_ = os.Remove(r.tmpPath)
		return "", 0, nil
	}
	if err := os.Rename(r.tmpPath, r.outPath); err != nil {
		return "", 0, fmt.Errorf("rename parquet: %w", err)
	}
	return r.outPath, r.rows, nil
}

// ReadReplay loads every row of a replay file.
func ReadReplay(path string) ([]ReplayRow, error) {
	rows, err := parquet.ReadFile[ReplayRow](path)
	if err != nil {
		return nil, fmt.Errorf("read replay %s: %w", path, err)
	}
	return rows, nil
}

// ReplayFrames rebuilds the frames of a recorded match, trails included, so
// a replay can be watched like a live match.
func ReplayFrames(rows []ReplayRow) ([]Frame, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	width, height := int(rows[0].Width), int(rows[0].Height)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("replay has invalid size %dx%d", width, height)
	}
	grid := game.NewGrid(width, height)

	var frames []Frame
	for start := 0; start < len(rows); {
		end := start
		for end < len(rows) && rows[end].Frame == rows[start].Frame {
			end++
		}

		frame := Frame{
			MatchID: rows[start].MatchID,
			Moves:   map[string]game.Direction{},
		}
		state := game.GameState{Frame: int(rows[start].Frame)}
		for _, row := range rows[start:end] {
			head := game.Coordinate{X: int(row.X), Y: int(row.Y)}
			if !grid.IsInside(head) {
				return nil, fmt.Errorf("frame %d: %s at %s is outside the board", row.Frame, row.Player, head)
			}
			grid.Set(head, int(row.Color))
			state.Players = append(state.Players, game.Player{Name: row.Player, Head: head, Color: int(row.Color)})

			if direction, err := game.ParseDirection(row.Direction); err == nil {
				frame.Moves[row.Player] = direction
			}
			if !row.Alive {
				frame.Eliminated = append(frame.Eliminated, row.Player)
			}
		}
		state.Grid = grid.Clone()
		frame.State = state
		frames = append(frames, frame)

		for _, p := range state.Players {
			for _, name := range frame.Eliminated {
				if p.Name == name {
					grid.ClearMarker(p.Color)
				}
			}
		}
		start = end
	}
	return frames, nil
}

// PlayFrames feeds frames one per interval. The channel is closed after the
// last frame or when ctx ends.
func PlayFrames(ctx context.Context, frames []Frame, interval time.Duration) <-chan Frame {
	out := make(chan Frame)
	interval = max(interval, time.Millisecond)
	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for _, frame := range frames {
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
