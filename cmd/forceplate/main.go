/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/forceplate/pkg/config"
	"github.com/carverauto/forceplate/pkg/db"
	"github.com/carverauto/forceplate/pkg/events"
	"github.com/carverauto/forceplate/pkg/heartbeat"
	"github.com/carverauto/forceplate/pkg/lifecycle"
	"github.com/carverauto/forceplate/pkg/link"
	"github.com/carverauto/forceplate/pkg/logger"
	"github.com/carverauto/forceplate/pkg/models"
	"github.com/carverauto/forceplate/pkg/recorder"
	"github.com/carverauto/forceplate/pkg/replay"
	"github.com/carverauto/forceplate/pkg/selfupdate"
	"github.com/carverauto/forceplate/pkg/station"
	"github.com/carverauto/forceplate/pkg/version"
)

var (
	errFailedToLoadConfig = errors.New("failed to load config")
	errNoDevice           = errors.New("no device port selected and none discovered")
)

type options struct {
	configPath string
	listPorts  bool
	port       string
	baud       int
	userID     int64
	platformID int64
	replayID   int64
	speed      float64
	stats      bool
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	var opts options

	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.BoolVar(&opts.listPorts, "list-ports", false, "List serial ports and exit")
	flag.StringVar(&opts.port, "port", "", "Serial port of the force plate")
	flag.IntVar(&opts.baud, "baud", 0, "Baud rate (defaults to the configured rate)")
	flag.Int64Var(&opts.userID, "user", 0, "Record a session for this user id")
	flag.Int64Var(&opts.platformID, "platform", 0, "Platform id used when recording")
	flag.Int64Var(&opts.replayID, "replay", 0, "Replay the recorded session with this id and exit")
	flag.Float64Var(&opts.speed, "speed", 1, "Replay speed multiplier")
	flag.BoolVar(&opts.stats, "stats", false, "Print usage statistics and exit")
	flag.Parse()

	ctx, stop := lifecycle.SignalContext(context.Background())
	defer stop()

	var cfg models.Config

	if err := config.NewConfig(nil).LoadAndValidate(ctx, opts.configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	mainLogger, err := lifecycle.CreateComponentLogger(ctx, "forceplate", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		_ = lifecycle.ShutdownLogger()
	}()

	mainLogger.Info().Str("version", version.GetFullVersion()).Msg("Starting force plate controller")

	if opts.listPorts {
		return listPorts(&cfg, mainLogger)
	}

	initMetrics(ctx, &cfg, mainLogger)

	defer func() {
		if err := logger.ShutdownMetrics(); err != nil {
			mainLogger.Debug().Err(err).Msg("Metrics shutdown")
		}
	}()

	store, err := db.New(ctx, &cfg.Database, logger.Component(mainLogger, "db"))
	if err != nil {
		return err
	}

	defer func() {
		_ = store.Close()
	}()

	switch {
	case opts.stats:
		return printStats(ctx, store)
	case opts.replayID > 0:
		return replaySession(ctx, store, mainLogger, os.Stdout, opts.replayID, opts.speed)
	default:
		return runStation(ctx, &cfg, store, mainLogger, &opts)
	}
}

func initMetrics(ctx context.Context, cfg *models.Config, log logger.Logger) {
	if !cfg.Metrics.Enabled {
		return
	}

	_, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceVersion: version.GetVersion(),
		OTel: &logger.OTelConfig{
			Enabled:  true,
			Endpoint: cfg.Metrics.Endpoint,
			Insecure: cfg.Metrics.Insecure,
			TLS:      cfg.Metrics.TLS,
		},
		ExportInterval: time.Duration(cfg.Metrics.ExportInterval),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Metrics export disabled")
	}
}

func listPorts(cfg *models.Config, log logger.Logger) error {
	mgr := link.NewManager(logger.Component(log, "link"), link.WithTargetName(cfg.Device.TargetName))

	ports, err := mgr.Discover()
	if err != nil {
		return err
	}

	for _, p := range ports {
		fmt.Println(p.Label(mgr.TargetName()))
	}

	return nil
}

func printStats(ctx context.Context, store db.Service) error {
	stats, err := store.GetStats(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(stats)
}

func replaySession(
	ctx context.Context, store db.Service, log logger.Logger, out io.Writer, sessionID int64, speed float64,
) error {
	done := make(chan struct{})

	var finished sync.Once

	engine := replay.NewEngine(logger.Component(log, "replay"), replay.WithFrameHandler(func(f replay.Frame) {
		fmt.Fprintf(out, "%6d ms  total=%8.1f g  x=%+6.1f%%  y=%+6.1f%%\n", f.OffsetMs, f.Total, f.CoM.XPercent(), f.CoM.YPercent())

		if f.Index == f.Count-1 {
			finished.Do(func() { close(done) })
		}
	}))
	defer engine.Close()

	sess, err := engine.Load(ctx, store, sessionID)
	if err != nil {
		return err
	}

	if err := engine.SetSpeed(speed); err != nil {
		return err
	}

	// sample_count is 0 for sessions that were never finalized; the loaded
	// frames are authoritative.
	_, frames := engine.Position()

	log.Info().
		Int64("session_id", sess.ID).
		Str("user", sess.UserName).
		Int("frames", frames).
		Float64("speed", speed).
		Msg("Replaying session")

	if frames <= 1 {
		return nil
	}

	if err := engine.Play(); err != nil {
		return err
	}

	select {
	case <-done:
	case <-ctx.Done():
	}

	return nil
}

func runStation(ctx context.Context, cfg *models.Config, store *db.DB, log logger.Logger, opts *options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		stationOpts []station.Option
		updater     *selfupdate.Updater
		agent       *heartbeat.Agent
		feed        *events.SessionFeed
	)

	if cfg.Events.Enabled {
		f, err := events.Connect(ctx, &cfg.Events, "forceplate", logger.Component(log, "events"))
		if err != nil {
			log.Warn().Err(err).Msg("Session event feed disabled")
		} else {
			feed = f
			stationOpts = append(stationOpts, station.WithRecorderOptions(recorder.WithObserver(feed)))
		}
	}

	if cfg.Remote.Enabled {
		a, u, err := buildAgent(ctx, cfg, store, log, cancel)
		if err != nil {
			log.Warn().Err(err).Msg("Remote monitoring disabled")
		} else {
			agent, updater = a, u
			stationOpts = append(stationOpts, station.WithAgent(agent))
		}
	}

	st := station.New(cfg, store, log, stationOpts...)

	if err := connectDevice(ctx, st, opts); err != nil {
		log.Warn().Err(err).Msg("Device not connected, waiting for reconnect")
	}

	if opts.userID > 0 || opts.platformID > 0 {
		if _, err := st.StartRecording(ctx, opts.userID, opts.platformID); err != nil {
			return err
		}
	}

	// The agent outlives ctx so the offline status follows session finalization.
	agentCtx, agentCancel := context.WithCancel(context.Background())
	defer agentCancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return st.Run(gctx)
	})

	if agent != nil {
		go func() {
			if err := agent.Run(agentCtx); err != nil {
				log.Warn().Err(err).Msg("Heartbeat agent exited")
			}
		}()
	}

	runErr := g.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*lifecycle.DefaultStepTimeout)
	defer shutdownCancel()

	if err := st.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Shutdown completed with errors")
	}

	if feed != nil {
		if err := feed.Close(); err != nil {
			log.Debug().Err(err).Msg("Event feed close")
		}
	}

	if updater != nil && updater.Pending() {
		_ = store.Close()

		log.Info().Str("exe", updater.Executable()).Msg("Restarting into updated binary")

		return updater.Restart(os.Args)
	}

	return runErr
}

func buildAgent(
	ctx context.Context, cfg *models.Config, store *db.DB, log logger.Logger, cancel context.CancelFunc,
) (*heartbeat.Agent, *selfupdate.Updater, error) {
	settingsPath := cfg.Update.SettingsPath
	if settingsPath == "" {
		settingsPath = models.DefaultSettingsFile
	}

	hbLogger := logger.Component(log, "heartbeat")

	id, err := heartbeat.LoadIdentity(ctx, heartbeat.SettingsPath(settingsPath), hbLogger)
	if err != nil {
		return nil, nil, err
	}

	agentOpts := []heartbeat.Option{
		heartbeat.WithUpdateReady(func(newVersion int) {
			log.Info().Int("version", newVersion).Msg("Update staged, shutting down for restart")
			cancel()
		}),
	}

	var updater *selfupdate.Updater

	if cfg.Update.Enabled {
		updater, err = selfupdate.NewUpdater(&cfg.Update, logger.Component(log, "selfupdate"))
		if err != nil {
			return nil, nil, err
		}

		agentOpts = append(agentOpts, heartbeat.WithInstaller(updater))
	}

	agent, err := heartbeat.NewAgent(&cfg.Remote, id, store, hbLogger, agentOpts...)
	if err != nil {
		return nil, nil, err
	}

	return agent, updater, nil
}

func connectDevice(ctx context.Context, st *station.Station, opts *options) error {
	name := opts.port

	if name == "" {
		ports, err := st.Ports()
		if err != nil {
			return err
		}

		if len(ports) == 0 {
			return errNoDevice
		}

		name = ports[0].Name
	}

	return st.Connect(ctx, name, opts.baud)
}
