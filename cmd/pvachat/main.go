// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command pvachat is a line-mode chat client against a Power Virtual
// Agents-style bot endpoint, driven by the chatadapter façade.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/microsoft/power-virtual-agents-sdk/auth"
	"github.com/microsoft/power-virtual-agents-sdk/chatadapter"
	"github.com/microsoft/power-virtual-agents-sdk/cmd/pvachat/tui"
	"github.com/microsoft/power-virtual-agents-sdk/internal/config"
	"github.com/microsoft/power-virtual-agents-sdk/internal/retry"
	"github.com/microsoft/power-virtual-agents-sdk/pva"
	"github.com/microsoft/power-virtual-agents-sdk/telemetry"
	"golang.org/x/time/rate"
)

var (
	configPath = flag.String("config", "pvachat.yaml", "path to the YAML configuration file")
	useTUI     = flag.Bool("tui", false, "use the Bubble Tea chat UI instead of line-mode stdin/stdout")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("pvachat: %v", err)
	}

	logger := newLogger(cfg.Log)
	engine := buildEngine(cfg, logger)

	adapter := chatadapter.New(&chatadapter.EngineStarter{
		Engine:                     engine,
		EmitStartConversationEvent: true,
	}, chatadapter.WithLogger(logger))

	if *useTUI {
		if _, err := tea.NewProgram(tui.New(adapter)).Run(); err != nil {
			log.Fatalf("pvachat: %v", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go printActivities(adapter)
	go printStatus(adapter)

	runInputLoop(ctx, adapter)
}

func buildEngine(cfg *config.Config, logger *slog.Logger) *pva.Engine {
	base, err := url.Parse(cfg.Bot.BaseURL)
	if err != nil {
		log.Fatalf("pvachat: invalid bot.base_url: %v", err)
	}
	transport := pva.TransportREST
	if cfg.Bot.Transport == "sse" {
		transport = pva.TransportSSE
	}

	var strategy pva.Strategy = &pva.StaticStrategy{
		Start: func(context.Context) (pva.RequestPrep, error) {
			return pva.RequestPrep{BaseURL: base, Transport: transport}, nil
		},
		Execute: func(context.Context) (pva.RequestPrep, error) {
			return pva.RequestPrep{BaseURL: base, Transport: transport}, nil
		},
	}

	if cfg.Auth.StaticToken != "" {
		provider := auth.NewTokenProvider(
			func(context.Context) (string, error) { return cfg.Auth.StaticToken, nil },
			cfg.Auth.RefreshLeeway,
		)
		strategy = &auth.AuthorizingStrategy{Base: strategy, Tokens: provider.ReuseTokenSource()}
	}

	opts := []pva.Option{
		pva.WithLogger(logger),
		pva.WithTelemetry(telemetry.New()),
		pva.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		pva.WithRetryPolicy(retry.Policy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			Multiplier:     cfg.Retry.Multiplier,
			MaxBackoff:     cfg.Retry.MaxBackoff,
		}),
	}
	if cfg.Rate.Enabled {
		opts = append(opts, pva.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.Rate.RequestsPerSecond), cfg.Rate.Burst)))
	}
	return pva.New(strategy, opts...)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func printActivities(adapter *chatadapter.Adapter) {
	for activity := range adapter.Activities() {
		fmt.Printf("bot> %v\n", activity["text"])
	}
}

func printStatus(adapter *chatadapter.Adapter) {
	for status := range adapter.ConnectionStatus() {
		fmt.Fprintf(os.Stderr, "[%s]\n", status)
	}
}

func runInputLoop(ctx context.Context, adapter *chatadapter.Adapter) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		result := <-adapter.PostActivity(ctx, pva.Activity{"type": "message", "text": text})
		if result.Err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", result.Err)
			return
		}
	}
}
