// Package main provides sessionprobe, a diagnostic CLI that connects to the
// broker as a real application, subscribes to the requested streams, and
// logs everything the session delivers until interrupted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rajeevrajeshuni/MentraOS-sub001/config"
	"github.com/rajeevrajeshuni/MentraOS-sub001/message"
	"github.com/rajeevrajeshuni/MentraOS-sub001/metric"
	"github.com/rajeevrajeshuni/MentraOS-sub001/pkg/backoff"
	"github.com/rajeevrajeshuni/MentraOS-sub001/session"
	"github.com/rajeevrajeshuni/MentraOS-sub001/transport"
)

var version = "dev"

type cliFlags struct {
	configPath  string
	sessionID   string
	subscribe   string
	verbose     bool
	showVersion bool
}

func parseFlags() *cliFlags {
	flags := &cliFlags{}
	flag.StringVar(&flags.configPath, "config", "config.json", "Path to configuration file (.json or .yaml)")
	flag.StringVar(&flags.sessionID, "session", "", "Session id to join (broker assigns one when empty)")
	flag.StringVar(&flags.subscribe, "subscribe", "transcription,button_press",
		"Comma-separated stream discriminants to subscribe to")
	flag.BoolVar(&flags.verbose, "verbose", false, "Enable debug logging")
	flag.BoolVar(&flags.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return flags
}

func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	flags := parseFlags()
	if flags.showVersion {
		fmt.Printf("sessionprobe %s\n", version)
		return
	}

	logger := setupLogger(flags.verbose)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		logger.Error("loading configuration", "path", flags.configPath, "error", err)
		os.Exit(1)
	}

	if err := run(logger, cfg, flags); err != nil {
		logger.Error("sessionprobe failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, cfg *config.Config, flags *cliFlags) error {
	registry := metric.NewRegistry()
	if cfg.Metrics.Enabled {
		serveMetrics(logger, registry, cfg.Metrics)
	}

	tr := transport.NewWebSocket(cfg.Broker.URL,
		transport.WithHandshakeTimeout(10*time.Second))

	client, err := buildClient(logger, cfg, registry, tr)
	if err != nil {
		return err
	}

	attachLoggers(logger, client)

	for _, stream := range strings.Split(flags.subscribe, ",") {
		stream = strings.TrimSpace(stream)
		if stream == "" {
			continue
		}
		if err := client.Subscribe(stream); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = client.Connect(ctx, flags.sessionID)
	cancel()
	if err != nil {
		return err
	}
	logger.Info("connected", "session_id", client.SessionID(), "subscriptions", client.Subscriptions())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	return client.Disconnect()
}

func buildClient(logger *slog.Logger, cfg *config.Config, registry *metric.Registry, tr transport.Transport) (*session.Client, error) {
	identity := session.Identity{
		PackageName: cfg.App.PackageName,
		APIKey:      cfg.App.APIKey,
	}

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithMetrics(registry),
		session.WithAutoReconnect(cfg.Session.AutoReconnectEnabled()),
	}
	if d := cfg.Session.ConnectTimeoutDuration(); d > 0 {
		opts = append(opts, session.WithConnectTimeout(d))
	}
	if d := cfg.Session.RequestTimeoutDuration(); d > 0 {
		opts = append(opts, session.WithRequestTimeout(d))
	}
	if d := cfg.Session.PhotoTimeoutDuration(); d > 0 {
		opts = append(opts, session.WithPhotoTimeout(d))
	}
	if cfg.Session.SendRatePerSecond > 0 && cfg.Session.SendBurst > 0 {
		opts = append(opts, session.WithSendLimiter(cfg.Session.SendRatePerSecond, cfg.Session.SendBurst))
	}

	backoffCfg := backoff.DefaultConfig()
	if d := cfg.Session.ReconnectBaseDelayDuration(); d > 0 {
		backoffCfg.BaseDelay = d
	}
	if d := cfg.Session.ReconnectMaxDelayDuration(); d > 0 {
		backoffCfg.MaxDelay = d
	}
	if cfg.Session.ReconnectMaxAttempts > 0 {
		backoffCfg.MaxAttempts = cfg.Session.ReconnectMaxAttempts
	}
	opts = append(opts, session.WithBackoff(backoffCfg))

	return session.NewClient(identity, tr, opts...)
}

// attachLoggers wires every lifecycle event and subscribed stream to the
// logger so a probe run shows exactly what the broker delivers.
func attachLoggers(logger *slog.Logger, client *session.Client) {
	client.On(message.EventConnected, func(ev session.Event) {
		logger.Info("session established", "session_id", ev.Payload)
	})
	client.On(message.EventDisconnected, func(ev session.Event) {
		d := ev.Payload.(session.DisconnectEvent)
		logger.Info("session disconnected", "reason", d.Reason, "clean", d.Clean, "permanent", d.Permanent)
	})
	client.On(message.EventError, func(ev session.Event) {
		e := ev.Payload.(session.ErrorEvent)
		logger.Warn("session error", "context", e.Context, "error", e.Err)
	})
	client.On(message.EventPermissionDenied, func(ev session.Event) {
		logger.Warn("permission denied", "details", ev.Payload)
	})
	client.On(message.EventSettings, func(ev session.Event) {
		logger.Info("settings updated", "settings", ev.Payload)
	})

	for _, stream := range []string{
		message.StreamTranscription,
		message.StreamTranslation,
		message.StreamButtonPress,
		message.StreamHeadPosition,
		message.StreamPhoneNotification,
		message.StreamBatteryUpdate,
		message.StreamLocationUpdate,
		message.StreamPhotoTaken,
		message.StreamVAD,
	} {
		client.On(stream, func(ev session.Event) {
			payload, _ := json.Marshal(ev.Payload)
			logger.Info("stream event", "stream", ev.Stream, "payload", string(payload))
		})
	}
	client.On(message.StreamAudioChunk, func(ev session.Event) {
		logger.Debug("audio frame", "bytes", len(ev.Binary))
	})

	client.OnAppMessage(func(ev session.AppMessageEvent) {
		logger.Info("peer message", "sender", ev.SenderPackage, "broadcast", ev.Broadcast,
			"payload", string(ev.Payload))
	})
}

func serveMetrics(logger *slog.Logger, registry *metric.Registry, cfg config.MetricsConfig) {
	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath(), registry.Handler())
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", cfg.Addr, "path", cfg.MetricsPath())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
}
