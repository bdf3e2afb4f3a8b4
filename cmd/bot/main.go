package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mshel/cycles/internal/bot"
	"github.com/Mshel/cycles/internal/engine"
	"github.com/Mshel/cycles/internal/transport"
	"github.com/charmbracelet/log"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <bot_name>\n", os.Args[0])
		flag.PrintDefaults()
	}

	url := flag.String("url", "ws://localhost:8080/play", "Arena websocket URL")
	policy := flag.String("policy", string(engine.PolicyArea), "Fallback policy: area or inertia")
	maxInertia := flag.Int("max-inertia", engine.DefaultMaxInertia, "Upper bound of the inertia drawn per match")
	level := flag.String("log-level", "info", "Log level")
	seed := flag.Int64("seed", 0, "Random seed, 0 for time based")
	matches := flag.Int("matches", 1, "Matches to play, 0 to keep playing")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	name := flag.Arg(0)

	logLevel, err := log.ParseLevel(*level)
	if err != nil {
		log.Fatal("Bad log level", "level", *level, "error", err)
	}
	log.SetLevel(logLevel)
	logger := log.Default().With("bot", name)

	config := engine.DefaultConfig()
	config.Policy = engine.Policy(*policy)
	config.MaxInertia = *maxInertia
	if err := config.Validate(); err != nil {
		log.Fatal("Bad engine config", "error", err)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		logger.Info("Stopping bot")
		cancel()
	}()

	for played := 0; *matches == 0 || played < *matches; played++ {
		if err := playMatch(ctx, *url, name, config, rng, log.Default()); err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, engine.ErrRetryExhausted) {
				logger.Fatal("Failed to find a valid move", "error", err)
			}
			logger.Fatal("Bot stopped", "error", err)
		}
	}
}

// playMatch joins the arena and plays until the match ends. Every match gets a
// fresh engine. The engine and the client tag their own lines with the bot
// name, so they get the untagged base logger.
func playMatch(ctx context.Context, url string, name string, config engine.Config, rng *rand.Rand, base *log.Logger) error {
	logger := base.With("bot", name)

	decisionEngine, err := engine.NewDecisionEngine(name, config, rng, base)
	if err != nil {
		return err
	}

	client, err := transport.Connect(ctx, url, name, base)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Info("Waiting for a match", "policy", config.Policy, "inertia", decisionEngine.Inertia())

	stats, err := bot.NewRunner(client, decisionEngine, logger).Run(ctx)
	logger.Info("Match finished", "frames", stats.Frames, "moves", stats.Moves, "skipped", stats.Skipped)
	if err != nil {
		return err
	}

	if result := client.Result(); result != nil {
		won := result.Winner == name
		logger.Info("Result", "match", result.MatchID, "winner", result.Winner, "won", won, "reason", result.Reason)
	}
	return nil
}
