package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/geolock/internal/broadcast"
	"github.com/ukydev/geolock/internal/config"
	"github.com/ukydev/geolock/internal/console"
	"github.com/ukydev/geolock/internal/control"
	"github.com/ukydev/geolock/internal/fetcher"
	"github.com/ukydev/geolock/internal/geocode"
	"github.com/ukydev/geolock/internal/handlers"
	"github.com/ukydev/geolock/internal/hotkeys"
	"github.com/ukydev/geolock/internal/logging"
	"github.com/ukydev/geolock/internal/pipeline"
	"github.com/ukydev/geolock/internal/supervisor"
)

func main() {
	os.Exit(run())
}

// run wires the tracker and blocks until a shutdown command or interrupt.
// It returns the process exit code.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "geolock: %v\n", err)
		return 1
	}

	logFile, err := logging.Setup(logging.Config{File: cfg.Log.File, Level: cfg.Log.Level, Stderr: cfg.Log.Stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "geolock: %v\n", err)
		return 1
	}
	defer logFile.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source, stopSource, err := newSource(cfg)
	if err != nil {
		log.WithError(err).Error("Failed to set up message source")
		fmt.Fprintf(os.Stderr, "geolock: %v\n", err)
		return 1
	}
	defer stopSource()

	store := pipeline.NewStore()
	poller := pipeline.NewPoller(pipeline.New(source), store, cfg.Server.PollInterval)

	resolver := geocode.NewPool(
		geocode.NewBreaker(
			geocode.NewNominatim(geocode.NominatimConfig{
				BaseURL:           cfg.Resolver.URL,
				UserAgent:         cfg.Resolver.UserAgent,
				RequestsPerSecond: cfg.Resolver.RequestsPerSecond,
			}),
			geocode.BreakerConfig{},
		),
		cfg.Resolver.Workers,
	)

	state := control.NewState()
	hub := broadcast.NewHub(broadcast.HubConfig{Interval: cfg.Server.BroadcastInterval}, store, state)
	server := broadcast.NewServer(
		broadcast.Config{Addr: cfg.Server.ListenAddr, TCPAddr: cfg.Server.TCPAddr},
		handlers.NewRouter(state, hub, store),
		hub,
	)
	if err := server.Listen(); err != nil {
		log.WithError(err).Error("Failed to start WebSocket server")
		fmt.Fprintf(os.Stderr, "geolock: %v\n", err)
		return 1
	}
	if err := state.MarkRunning(); err != nil {
		log.WithError(err).Error("Failed to mark server running")
		return 1
	}

	sources, chords := commandSources(cfg.Console.Hotkeys)
	display := console.New(console.Config{Interval: cfg.Console.Interval, Hints: hints(chords)}, store, resolver, state.ShuttingDown())
	display.Banner()

	tree := supervisor.NewTree(supervisor.TreeConfig{})
	tree.AddIngest(poller)
	tree.AddServe(server)
	tree.AddServe(display)
	treeDone := tree.ServeBackground(ctx)

	ctrl, err := control.NewController(control.ControllerConfig{
		State:   state,
		Server:  server,
		Viewer:  cfg.Console.Viewer,
		Exit:    cancel,
		Sources: sources,
	})
	if err != nil {
		log.WithError(err).Error("Failed to set up controller")
		return 1
	}

	log.WithFields(log.Fields{
		"addr":   server.Addr(),
		"source": cfg.Source,
	}).Info("GeoLock started")

	_ = ctrl.Run(ctx)
	// A supervisor-level cancel can arrive without a shutdown command.
	if err := ctrl.Shutdown(); err != nil {
		log.WithError(err).Warn("Shutdown finished with errors")
	}
	if err := <-treeDone; err != nil && err != context.Canceled {
		log.WithError(err).Warn("Supervisor stopped with error")
	}
	return 0
}

// newSource builds the configured message fetcher and returns its cleanup.
func newSource(cfg *config.Config) (fetcher.Fetcher, func(), error) {
	switch cfg.Source {
	case config.SourceMQTT:
		mcfg := fetcher.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
		}
		client, err := fetcher.ConnectMQTT(mcfg)
		if err != nil {
			return nil, nil, err
		}
		f := fetcher.NewMQTTFetcher(client, mcfg)
		if err := f.Start(); err != nil {
			client.Disconnect(250)
			return nil, nil, err
		}
		return f, f.Stop, nil
	default:
		f, err := fetcher.NewDiscordFetcher(fetcher.DiscordConfig{
			BaseURL:   cfg.Discord.APIURL,
			Token:     cfg.Discord.Token,
			ChannelID: cfg.Discord.ChannelID,
			Limit:     cfg.Discord.Limit,
		})
		if err != nil {
			return nil, nil, err
		}
		return f, func() {}, nil
	}
}

// commandSources returns the control sources for this build. Signals are
// always wired; global hotkeys only when enabled and compiled in.
func commandSources(enableHotkeys bool) ([]control.Source, []hotkeys.Chord) {
	sources := []control.Source{control.NewSignalListener()}
	if !enableHotkeys {
		return sources, nil
	}
	if !hotkeys.Supported() {
		log.Info("Global hotkeys are not available in this build, use Ctrl-C to stop")
		return sources, nil
	}
	l := hotkeys.NewListener()
	return append(sources, l), l.Chords()
}

func hints(chords []hotkeys.Chord) []string {
	out := make([]string, 0, len(chords))
	for _, c := range chords {
		switch c.Command {
		case control.CommandOpenViewer:
			out = append(out, c.Label+" to open live mapview in browser.")
		case control.CommandShutdown:
			out = append(out, c.Label+" to shutdown websocket server.")
		}
	}
	return out
}
