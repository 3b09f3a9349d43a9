package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/tinyland-inc/relaybot/cmd/relaybot/internal"
	"github.com/tinyland-inc/relaybot/pkg/bus"
	"github.com/tinyland-inc/relaybot/pkg/channels"
	"github.com/tinyland-inc/relaybot/pkg/channels/discord"
	"github.com/tinyland-inc/relaybot/pkg/channels/slack"
	"github.com/tinyland-inc/relaybot/pkg/channels/telegram"
	"github.com/tinyland-inc/relaybot/pkg/channels/webchat"
	"github.com/tinyland-inc/relaybot/pkg/commands"
	"github.com/tinyland-inc/relaybot/pkg/config"
	"github.com/tinyland-inc/relaybot/pkg/health"
	"github.com/tinyland-inc/relaybot/pkg/logger"
	"github.com/tinyland-inc/relaybot/pkg/metrics"
	"github.com/tinyland-inc/relaybot/pkg/reminder"
	"github.com/tinyland-inc/relaybot/pkg/routing"
	"github.com/tinyland-inc/relaybot/pkg/summary"
)

func gatewayCmd(debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	msgBus := bus.NewMessageBus()
	meters := metrics.NewStore()
	channelManager := channels.NewManager(meters)

	coordinator := routing.NewCoordinator(channelManager, routing.Options{
		AggregationRequired: cfg.Routing.AggregationRequired,
		AutoAccept:          cfg.Routing.AutoAccept,
		BroadcastTimeout:    time.Duration(cfg.Routing.BroadcastTimeoutSeconds) * time.Second,
	})

	storage := routing.NewFileStorage(cfg.StatePath())
	coordinator.SetStorage(storage)
	if err := coordinator.LoadState(); err != nil {
		logger.WarnCF("gateway", "Could not restore routing state", map[string]any{
			"error": err.Error(),
		})
	}

	if cfg.Summarizer.Enabled {
		coordinator.SetSummarizer(summary.New(cfg.Summarizer))
		fmt.Println("✓ Request summaries enabled")
	}

	interpreter := commands.NewInterpreter(coordinator, cfg.Routing.CommandPrefix, []string{"relaybot"})
	coordinator.SetCommandHandler(interpreter)

	if err := registerChannels(channelManager, cfg, msgBus); err != nil {
		return err
	}
	enabled := channelManager.Names()
	if len(enabled) > 0 {
		fmt.Printf("✓ Channels enabled: %v\n", enabled)
	} else {
		fmt.Println("⚠ Warning: No channels enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channelManager.StartAll(ctx)

	var reminderService *reminder.Service
	if cfg.Reminders.Enabled {
		reminderService, err = reminder.New(
			coordinator,
			cfg.Reminders.Schedule,
			time.Duration(cfg.Reminders.AfterSeconds)*time.Second,
		)
		if err != nil {
			return fmt.Errorf("error setting up reminders: %w", err)
		}
		go reminderService.Run(ctx)
		fmt.Println("✓ Pending-request reminders started")
	}

	healthServer := health.NewServer(cfg.Gateway.Host, cfg.Gateway.Port)
	healthServer.SetMetrics(meters)
	go func() {
		if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("health", "Health server error", map[string]any{"error": err.Error()})
		}
	}()
	fmt.Printf("✓ Health endpoints available at http://%s:%d/health and /ready\n", cfg.Gateway.Host, cfg.Gateway.Port)

	go routeInbound(ctx, msgBus, coordinator)
	healthServer.SetReady(true)

	fmt.Printf("✓ Gateway started on %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	fmt.Println("\nShutting down...")
	healthServer.SetReady(false)
	cancel()
	healthServer.Stop(context.Background())
	channelManager.StopAll(context.Background())
	msgBus.Close()
	fmt.Println("✓ Gateway stopped")

	return nil
}

// routeInbound drains the bus into the coordinator until ctx is canceled.
func routeInbound(ctx context.Context, msgBus *bus.MessageBus, coordinator *routing.Coordinator) {
	for {
		msg, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		coordinator.HandleInbound(msg)
	}
}

func registerChannels(manager *channels.Manager, cfg *config.Config, msgBus *bus.MessageBus) error {
	if cfg.Channels.Telegram.Enabled {
		ch, err := telegram.New(cfg.Channels.Telegram, msgBus)
		if err != nil {
			return fmt.Errorf("telegram channel: %w", err)
		}
		manager.RegisterChannel(ch)
	}
	if cfg.Channels.Discord.Enabled {
		ch, err := discord.New(cfg.Channels.Discord, msgBus)
		if err != nil {
			return fmt.Errorf("discord channel: %w", err)
		}
		manager.RegisterChannel(ch)
	}
	if cfg.Channels.Slack.Enabled {
		ch, err := slack.New(cfg.Channels.Slack, msgBus)
		if err != nil {
			return fmt.Errorf("slack channel: %w", err)
		}
		manager.RegisterChannel(ch)
	}
	if cfg.Channels.Webchat.Enabled {
		manager.RegisterChannel(webchat.New(cfg.Channels.Webchat, msgBus))
	}
	return nil
}
