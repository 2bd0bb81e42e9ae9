// Command fret-sensor samples flex sensors through the ADC, lights the LED
// while the sensor is bent and mirrors each channel's state to a remote
// boolean store.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sweeney/fret-sensor/internal/adc"
	"github.com/sweeney/fret-sensor/internal/config"
	"github.com/sweeney/fret-sensor/internal/gpio"
	"github.com/sweeney/fret-sensor/internal/logic"
	"github.com/sweeney/fret-sensor/internal/metrics"
	"github.com/sweeney/fret-sensor/internal/mqtt"
	"github.com/sweeney/fret-sensor/internal/rtdb"
	"github.com/sweeney/fret-sensor/internal/status"
	"github.com/sweeney/fret-sensor/internal/web"
)

var version = "dev"

// CLI holds the command line. Pointer fields override the config file only
// when set, either as a flag or through the FRET_* environment.
type CLI struct {
	Config     string `short:"c" help:"Configuration file path (YAML)" env:"FRET_CONFIG"`
	Verbose    bool   `short:"v" help:"Enable debug logging" env:"FRET_VERBOSE"`
	LogFormat  string `help:"Log encoding (console or json)" enum:"console,json" default:"console" env:"FRET_LOG_FORMAT"`
	PrintState bool   `help:"Sample every channel once, print the states and exit"`

	Store     *string        `help:"Remote store (mqtt or rtdb)" env:"FRET_STORE"`
	Broker    *string        `help:"MQTT broker address" env:"FRET_BROKER"`
	DBURL     *string        `name:"db-url" help:"Realtime Database URL" env:"FRET_DB_URL"`
	APIKey    *string        `name:"api-key" help:"Web API key for anonymous sign-in" env:"FRET_API_KEY"`
	HTTP      *string        `name:"http" help:"HTTP status address (empty to disable)" env:"FRET_HTTP"`
	Threshold *int           `help:"Raw cutoff; readings below it are ON" env:"FRET_THRESHOLD"`
	Interval  *time.Duration `help:"Minimum spacing between cycles" env:"FRET_INTERVAL"`
	Heartbeat *time.Duration `help:"Heartbeat interval (0 to disable)" env:"FRET_HEARTBEAT"`

	Version kong.VersionFlag `help:"Show version and exit"`
}

// apply overlays the set flags on cfg.
func (c *CLI) apply(cfg *config.Config) {
	if c.Store != nil {
		cfg.Store.Kind = *c.Store
	}
	if c.Broker != nil {
		cfg.Store.MQTT.Broker = *c.Broker
	}
	if c.DBURL != nil {
		cfg.Store.RTDB.URL = *c.DBURL
	}
	if c.APIKey != nil {
		cfg.Store.RTDB.APIKey = *c.APIKey
	}
	if c.HTTP != nil {
		cfg.HTTPAddr = *c.HTTP
	}
	if c.Threshold != nil {
		cfg.Threshold = *c.Threshold
	}
	if c.Interval != nil {
		cfg.Interval = *c.Interval
	}
	if c.Heartbeat != nil {
		cfg.Heartbeat = *c.Heartbeat
	}
}

func main() {
	// pi-helper's env file must be in the environment before kong reads FRET_*.
	loaded, envErr := config.LoadEnvFiles(config.DefaultEnvFiles...)

	var cli CLI
	kong.Parse(&cli,
		kong.Name("fret-sensor"),
		kong.Description("Mirror flex sensor states to a remote boolean store."),
		kong.Vars{"version": version},
	)

	logger, err := newLogger(cli.Verbose, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Warn("env file error", zap.Error(envErr))
	}
	if len(loaded) > 0 {
		logger.Debug("loaded env files", zap.Strings("files", loaded))
	}

	if err := run(&cli, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

func newLogger(verbose bool, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = format
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.Sampling = nil
	return cfg.Build()
}

// systemPublisher sends lifecycle events. Only the MQTT store carries them;
// other stores log them.
type systemPublisher interface {
	PublishSystem(event mqtt.SystemEvent) error
}

type logSystemPublisher struct {
	logger *zap.Logger
}

func (p logSystemPublisher) PublishSystem(event mqtt.SystemEvent) error {
	p.logger.Info("system event", zap.String("event", event.Event), zap.String("reason", event.Reason))
	return nil
}

func run(cli *CLI, logger *zap.Logger) (err error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	cli.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	channels := cfg.LogicChannels()

	sampler, err := adc.NewIIOSampler(cfg.ADC.Device, logger.Named("adc"))
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}

	if cli.PrintState {
		return printState(os.Stdout, sampler, channels, cfg.Threshold)
	}

	var actuator logic.Actuator
	if cfg.LED.Channel >= 0 {
		led, lerr := gpio.NewRealLED(cfg.LED.Chip, cfg.LED.Line)
		if lerr != nil {
			return fmt.Errorf("init led: %w", lerr)
		}
		defer multierr.AppendInvoke(&err, multierr.Close(led))
		actuator = led
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store   logic.Store
		session logic.Session
		sysPub  systemPublisher
		target  string
	)
	switch cfg.Store.Kind {
	case config.StoreMQTT:
		pub, perr := mqtt.NewRealPublisher(mqtt.Options{
			Broker:      cfg.Store.MQTT.Broker,
			ClientID:    cfg.Store.MQTT.ClientID,
			TopicPrefix: cfg.Store.MQTT.TopicPrefix,
		}, logger.Named("mqtt"))
		if perr != nil {
			return fmt.Errorf("init mqtt: %w", perr)
		}
		defer multierr.AppendInvoke(&err, multierr.Close(pub))
		store, session, sysPub = pub, pub, pub
		target = cfg.Store.MQTT.Broker
	case config.StoreRTDB:
		sess := rtdb.NewSession(rtdb.SessionOptions{APIKey: cfg.Store.RTDB.APIKey}, logger.Named("rtdb"))
		client, cerr := rtdb.NewClient(cfg.Store.RTDB.URL, sess, nil)
		if cerr != nil {
			return fmt.Errorf("init rtdb: %w", cerr)
		}
		go sess.Run(ctx)
		store, session = client, sess
		sysPub = logSystemPublisher{logger: logger.Named("system")}
		target = cfg.Store.RTDB.URL
	}

	// Tracker exists before STARTUP so the event carries a full snapshot.
	start := time.Now()
	tracker := status.NewTracker(start, status.Config{
		Threshold:   cfg.Threshold,
		IntervalMs:  cfg.Interval.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Store:       cfg.Store.Kind,
		Target:      target,
		HTTPAddr:    cfg.HTTPAddr,
	}, channels)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	recorder := metrics.NewRecorder(nil)

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := sysPub.PublishSystem(startup); err != nil {
		logger.Warn("failed to publish startup event", zap.Error(err))
	} else {
		logger.Info("published startup event")
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, recorder.Handler(), logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", zap.String("addr", cfg.HTTPAddr))
	}

	syncer := logic.NewSyncer(logic.Options{
		Channels:  channels,
		Threshold: cfg.Threshold,
		Interval:  cfg.Interval,
		Sampler:   sampler,
		Actuator:  actuator,
		Store:     store,
		Session:   session,
		Logger:    logger.Named("sync"),
		StartTime: start,
	})

	logger.Info("started",
		zap.Ints("pins", cfg.Pins()),
		zap.Int("threshold", cfg.Threshold),
		zap.Duration("interval", cfg.Interval),
		zap.String("store", cfg.Store.Kind),
		zap.String("target", target),
		zap.Duration("heartbeat", cfg.Heartbeat))

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctx, loopDeps{
		syncer:   syncer,
		session:  session,
		sysPub:   sysPub,
		tracker:  tracker,
		recorder: recorder,
		logger:   logger,
	}, cfg.Heartbeat, time.Now, ticker.C, sigCh)
}

// loopDeps are the collaborators of runLoop. tracker and recorder may be nil.
type loopDeps struct {
	syncer   *logic.Syncer
	session  logic.Session
	sysPub   systemPublisher
	tracker  *status.Tracker
	recorder *metrics.Recorder
	logger   *zap.Logger
}

func runLoop(ctx context.Context, d loopDeps, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	logger := d.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	wasReady := false

	for {
		select {
		case s := <-sig:
			logger.Info("shutting down", zap.Stringer("signal", s))
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				d.tracker.SetSessionReady(d.session.Ready())
				event.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := d.sysPub.PublishSystem(event); err != nil {
				logger.Warn("failed to publish shutdown event", zap.Error(err))
			} else {
				logger.Info("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			began := time.Now()
			report := d.syncer.Cycle(ctx, t)
			d.recorder.Observe(report, time.Since(began))

			ready := d.session.Ready()
			if ready != wasReady {
				logger.Info("session state changed", zap.Bool("ready", ready))
				wasReady = ready
			}
			d.recorder.SetSessionReady(ready)
			if d.tracker != nil {
				d.tracker.Update(report, d.syncer.CountsSnapshot())
				d.tracker.SetSessionReady(ready)
			}

			if hb := d.syncer.CheckHeartbeat(t, heartbeat); hb != nil {
				logger.Info("heartbeat",
					zap.Duration("uptime", hb.Uptime),
					zap.Int("cycles", hb.Counts.Cycles),
					zap.Int("transitions", hb.Counts.Transitions),
					zap.Int("published", hb.Counts.Published),
					zap.Int("failed", hb.Counts.Failed))

				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     "HEARTBEAT",
				}
				if d.tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						d.tracker.SetNetwork(net)
					}
					hbEvent.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := d.sysPub.PublishSystem(hbEvent); err != nil {
					logger.Warn("heartbeat publish error", zap.Error(err))
				}
			}
		}
	}
}

// printState samples every channel once and writes one line per channel.
func printState(w io.Writer, sampler logic.Sampler, channels []logic.Channel, threshold int) error {
	for _, ch := range channels {
		raw := sampler.Sample(ch)
		state := logic.StateOf(logic.StateFor(raw, threshold))
		if _, err := fmt.Fprintf(w, "%s: %s (pin %d, raw %d)\n", ch.Path(), state, ch.Pin, raw); err != nil {
			return err
		}
	}
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
