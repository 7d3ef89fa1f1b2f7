// Doll targeting service.
//
// Wires the frame feed, the dot detector, the turret link and the
// acquisition runner together, and exposes the operator dashboard.
// Target requests arrive from the game flow via POST /api/target.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fablab-bergamo/squid-game-doll/internal/config"
	"github.com/fablab-bergamo/squid-game-doll/internal/log"
	"github.com/fablab-bergamo/squid-game-doll/pkg/store"
	"github.com/fablab-bergamo/squid-game-doll/pkg/targeting"
	"github.com/fablab-bergamo/squid-game-doll/pkg/turret"
	"github.com/fablab-bergamo/squid-game-doll/pkg/vision"
	"github.com/fablab-bergamo/squid-game-doll/pkg/web"
)

func main() {
	configPath := flag.String("config", "doll.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	cfg.Turret.Host = config.TurretHostRequired(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
	}()

	targetingCfg := targeting.DefaultConfig()

	linkCfg := turret.DefaultLinkConfig(cfg.Turret.Addr())
	linkCfg.ConnectTimeout = cfg.Turret.ConnectTimeout.Std()
	linkCfg.ReplyTimeout = cfg.Turret.ReplyTimeout.Std()
	// Command rate stays bounded by the control period.
	linkCfg.MinInterval = targetingCfg.SampleTime
	link := turret.NewLink(linkCfg)
	defer link.Close()

	latest := vision.NewLatest()
	if cfg.Feed.URL != "" {
		feed := vision.NewFeed(cfg.Feed.URL, latest)
		go feed.Run(ctx)
	} else {
		log.Warn("no frame feed configured, sessions will time out")
	}

	detector := vision.NewDetector(vision.DefaultDetectorConfig())
	runner := targeting.NewRunner(link, latest, detector, targetingCfg)

	var history *store.Store
	if cfg.History.Enabled {
		history, err = store.Open(cfg.History.Path)
		if err != nil {
			log.Error("session store unavailable", "err", err)
			history = nil
		} else {
			defer history.Close()
			runner.OnResult = func(res targeting.SessionResult) {
				if err := history.Record(res); err != nil {
					log.Warn("record session", "err", err)
				}
			}
		}
	}

	if !cfg.Web.Enabled {
		<-ctx.Done()
		drainRunner(runner)
		return
	}

	server := web.NewServer(cfg.Web.Port, runner)
	if history != nil {
		server.History = history
	}
	if err := server.Run(ctx); err != nil {
		log.Error("dashboard stopped", "err", err)
	}
	drainRunner(runner)
}

// drainRunner lets the active session reach a terminal state, which is
// what disables the laser, before the process exits.
func drainRunner(runner *targeting.Runner) {
	if !runner.Shutdown(2 * time.Second) {
		log.Warn("session still running at exit")
	}
}
