package main

import (
	"context"
	"errors"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mshel/cycles/internal/arena"
	"github.com/Mshel/cycles/internal/transport"
	"github.com/Mshel/cycles/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to the arena yaml config")
	watch := flag.Bool("watch", false, "Watch matches in this terminal")
	replayPath := flag.String("replay", "", "Watch a recorded replay instead of running the arena")
	replaySpeed := flag.Duration("replay-speed", 100*time.Millisecond, "Time between replay frames")
	flag.Parse()

	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal("Could not load config", "error", err)
	}

	level, err := log.ParseLevel(config.LogLevel)
	if err != nil {
		log.Fatal("Bad log level", "level", config.LogLevel, "error", err)
	}
	log.SetLevel(level)

	if *replayPath != "" {
		if err := watchReplay(*replayPath, *replaySpeed); err != nil {
			log.Fatal("Replay failed", "error", err)
		}
		return
	}

	if *watch {
		logFile, err := os.OpenFile("arena.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatal("Could not open log file", "error", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	}

	if err := run(config, *watch); err != nil {
		log.Fatal("Arena stopped", "error", err)
	}
}

func loadConfig(path string) (arena.Config, error) {
	if path == "" {
		return arena.ParseConfig(nil)
	}
	return arena.LoadConfig(path)
}

func run(config arena.Config, watch bool) error {
	logger := log.Default()

	seed := config.Match.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	store, err := arena.NewResultStore(config.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	lobby := arena.NewLobby(config.MinPlayers, config.Match.MaxPlayers, logger)
	residents, err := arena.NewResidents(config, rng, logger)
	if err != nil {
		return err
	}
	for _, agent := range residents {
		if err := lobby.AddResident(agent); err != nil {
			return err
		}
	}

	broadcaster := arena.NewBroadcaster(logger)
	defer broadcaster.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	arenaDone := make(chan struct{})
	go func() {
		defer close(arenaDone)
		if err := arena.NewArena(config, lobby, store, broadcaster, rng, logger).Run(ctx); err != nil {
			log.Error("Arena loop failed", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/play", transport.NewServer(lobby, logger))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	httpServer := &http.Server{
		Addr:        config.Listen,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	serverDoneChannel := make(chan os.Signal, 1)
	// Capturing system signal to stop the arena
	signal.Notify(serverDoneChannel, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	log.Info("Starting arena", "listen", config.Listen, "residents", len(residents))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Could not start websocket server", "error", err)
			serverDoneChannel <- nil
		}
	}()

	var sshServer *ssh.Server
	if config.SSH.Enabled {
		sshServer, err = newSSHServer(config, broadcaster, store)
		if err != nil {
			return err
		}
		log.Info("Starting SSH server", "address", config.SSH.Address)
		go func() {
			if err := sshServer.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
				log.Error("Could not start server", "error", err)
				serverDoneChannel <- nil
			}
		}()
	}

	if watch {
		go func() {
			frames, unsubscribe := broadcaster.Subscribe()
			defer unsubscribe()
			model := ui.NewSpectatorModel(frames, store, 0, 0).WithLeaderboardSize(config.SSH.LeaderboardSize)
			p := tea.NewProgram(model, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				log.Error("Spectator view failed", "error", err)
			}
			serverDoneChannel <- nil
		}()
	}

	<-serverDoneChannel

	log.Info("Stopping arena")
	cancel()
	// Late decisions may still be running on resident bots until the arena
	// loop returns.
	<-arenaDone
	lobby.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Could not stop websocket server", "error", err)
	}
	if sshServer != nil {
		if err := sshServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			log.Error("Could not stop server", "error", err)
		}
	}
	return nil
}

func newSSHServer(config arena.Config, broadcaster *arena.Broadcaster, store *arena.ResultStore) (*ssh.Server, error) {
	limiter := newConnectionLimiter(config.SSH.MaxConnectionsPerIP)

	viewHandler := func(sshSession ssh.Session) (tea.Model, []tea.ProgramOption) {
		pty, _, _ := sshSession.Pty()
		frames, unsubscribe := broadcaster.Subscribe()
		go func() {
			<-sshSession.Context().Done()
			unsubscribe()
		}()

		model := ui.NewSpectatorModel(frames, store, pty.Window.Width, pty.Window.Height).
			WithLeaderboardSize(config.SSH.LeaderboardSize)
		return model, []tea.ProgramOption{tea.WithAltScreen()}
	}

	return wish.NewServer(
		wish.WithAddress(config.SSH.Address),
		wish.WithHostKeyPath(config.SSH.HostKeyPath),
		wish.WithMiddleware(
			bubbletea.Middleware(viewHandler),
			logging.Middleware(),
			activeterm.Middleware(),
			limiter.Middleware,
		),
	)
}

func watchReplay(path string, speed time.Duration) error {
	rows, err := arena.ReadReplay(path)
	if err != nil {
		return err
	}
	frames, err := arena.ReplayFrames(rows)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(ui.NewSpectatorModel(arena.PlayFrames(ctx, frames, speed), nil, 0, 0), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
