// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/ItzRandom23/magmastream-custom/internal/app/filters"
	"github.com/ItzRandom23/magmastream-custom/internal/app/notification"
	"github.com/ItzRandom23/magmastream-custom/internal/app/player"
	"github.com/ItzRandom23/magmastream-custom/internal/app/resolver"
	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/config"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/discord"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/lavalink"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/logger"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/mqtt"
)

var (
	app        = kingpin.New("magmastream", "Audio player control plane for Lavalink nodes")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	listFiltersCmd = app.Command("list-filters", "List available filter presets and exit")

	searchCmd   = app.Command("search", "Resolve a query or catalog URL and print the tracks")
	searchQuery = searchCmd.Arg("query", "Search text or catalog URL").Required().String()
	searchLimit = searchCmd.Flag("limit", "Maximum number of tracks for collections").Default("0").Int()
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		// The logger is not configured yet; fall back to stderr.
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Output: cfg.Log.Output,
		Level:  cfg.Log.Level,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	if command == searchCmd.FullCommand() {
		if err := search(cfg, *searchQuery, *searchLimit); err != nil {
			zlog.Error().Msgf("Search failed: %+v", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %+v", err)
		os.Exit(1)
	}
}

// run starts every component and blocks until a shutdown signal arrives.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodes, err := newNodes(cfg)
	if err != nil {
		return err
	}

	res, err := newResolver(ctx, cfg, nodes.registry)
	if err != nil {
		return err
	}

	forwarder := &discord.Forwarder{}
	client, err := discord.New(cfg.Discord.Token, forwarder)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	notifier := notification.NewManager()
	defer notifier.Close()
	if cfg.MQTT.Enabled {
		broker, err := mqtt.Connect(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			TLS:      cfg.MQTT.TLS,
			Timeout:  cfg.MQTT.Timeout,
		})
		if err != nil {
			return err
		}
		defer broker.Close()
		id := notifier.Subscribe(mqtt.NewPublisher(broker, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS))
		zlog.Info().Msgf("Publishing player updates to MQTT: broker=%s subscription=%s", cfg.MQTT.Broker, id)
	}

	manager, err := player.NewManager(player.Config{
		DefaultVolume:         cfg.Player.DefaultVolume,
		AutoplayTries:         cfg.Player.AutoplayTries,
		DynamicRepeatInterval: cfg.Player.DynamicRepeatInterval,
		RequestTimeout:        cfg.Player.RequestTimeout,
		SelfMute:              cfg.Player.SelfMute,
		SelfDeafen:            cfg.Player.SelfDeafen,
	}, nodes.registry, discord.NewGateway(client), res, notifier)
	if err != nil {
		return errors.Wrap(err, "failed to create player manager")
	}
	forwarder.Bind(manager)

	userID := cfg.Client.UserID
	if userID == "" {
		userID = client.ID().String()
	}
	nodes.attachSockets(cfg, userID, manager)

	if err := client.OpenGateway(ctx); err != nil {
		return errors.Wrap(err, "failed to open discord gateway")
	}
	nodes.connect(ctx)

	executeHooks(cfg.Hooks.OnStarted, "on_started")
	zlog.Info().Msgf("Server started: nodes=%d user=%s", len(cfg.Nodes), userID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	zlog.Info().Msg("Received shutdown signal...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	manager.Shutdown(shutdownCtx)
	nodes.close()

	zlog.Info().Msg("Server stopped")
	executeHooks(cfg.Hooks.OnStopped, "on_stopped")
	return nil
}

// search resolves one query against the first configured node and prints the result.
func search(cfg *config.Config, query string, limit int) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	first := nodeOptions(cfg.Nodes[0])
	if err := first.Normalize(); err != nil {
		return err
	}
	backend, err := lavalink.New(lavalink.Config{
		Host:     first.Host,
		Port:     first.Port,
		Password: first.Password,
		Secure:   first.Secure,
	})
	if err != nil {
		return err
	}
	res, err := newResolver(ctx, cfg, backend)
	if err != nil {
		return err
	}

	requester := &track.Requester{ID: "cli", Name: "cli", Type: track.RequesterTypeUser}
	var result *resolver.Result
	if strings.HasPrefix(query, "http://") || strings.HasPrefix(query, "https://") || strings.HasPrefix(query, "spotify:") {
		result = res.Resolve(ctx, query, limit, requester)
	} else {
		result = res.Search(ctx, query, requester)
	}

	fmt.Printf("Load type: %s\n", result.LoadType)
	if result.Playlist != nil {
		fmt.Printf("Playlist: %s (%d tracks, %s)\n", result.Playlist.Name, len(result.Playlist.Tracks),
			time.Duration(result.Playlist.Duration)*time.Millisecond)
	}
	for i, t := range result.Tracks {
		fmt.Printf("  %2d. %-40s %-25s %8s  %s\n", i+1, t.Title, t.Author, t.Length().Round(time.Second), t.URI)
	}
	return nil
}

// printFilters prints available filter presets.
func printFilters() {
	fmt.Println("Available Filters:")
	for _, name := range filters.Names() {
		fmt.Printf("  %s\n", name)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// sh -c allows redirection and pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
