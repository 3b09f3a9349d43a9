// Package telegram connects to the Telegram Bot API using long polling.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/tinyland-inc/relaybot/pkg/bus"
	"github.com/tinyland-inc/relaybot/pkg/channels"
	"github.com/tinyland-inc/relaybot/pkg/config"
	"github.com/tinyland-inc/relaybot/pkg/logger"
)

const serviceEndpoint = "https://api.telegram.org"

type Channel struct {
	*channels.BaseChannel
	bot        *telego.Bot
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

func New(cfg config.TelegramConfig, msgBus *bus.MessageBus) (*Channel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Channel{
		BaseChannel: channels.NewBaseChannel("telegram", serviceEndpoint, msgBus, cfg.AllowFrom),
		bot:         bot,
	}, nil
}

// Start begins long polling for Telegram updates.
func (c *Channel) Start(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.SetRunning(true)
	logger.InfoCF("telegram", "Connected", map[string]any{
		"username": c.bot.Username(),
	})

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil {
					c.handleMessage(update.Message)
				}
			}
		}
	}()

	return nil
}

// Stop cancels the long polling context and waits for the polling
// goroutine to exit so Telegram releases the getUpdates lock.
func (c *Channel) Stop(_ context.Context) error {
	c.SetRunning(false)
	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
		case <-time.After(10 * time.Second):
			logger.WarnC("telegram", "Polling goroutine did not exit within timeout")
		}
	}
	return nil
}

func (c *Channel) handleMessage(message *telego.Message) {
	if message.From == nil || message.Text == "" {
		return
	}

	senderID := strconv.FormatInt(message.From.ID, 10)
	if message.From.Username != "" {
		senderID = senderID + "|" + message.From.Username
	}
	senderName := message.From.FirstName
	if senderName == "" {
		senderName = message.From.Username
	}

	botName := c.bot.Username()
	var mentions []string
	if botName != "" && strings.Contains(message.Text, "@"+botName) {
		mentions = []string{botName}
	}

	c.HandleMessage(
		strconv.Itoa(message.MessageID),
		senderID,
		senderName,
		strconv.FormatInt(message.Chat.ID, 10),
		message.Text,
		botName,
		botName,
		mentions,
	)
}

func (c *Channel) Send(conversationID, text string) (string, error) {
	chatID, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid telegram chat ID %q: %w", conversationID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sent, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		return "", fmt.Errorf("telegram send: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

// CreateDirectConversation resolves a 1:1 chat. On Telegram the private
// chat ID equals the numeric account ID.
func (c *Channel) CreateDirectConversation(accountID string) (string, error) {
	idPart := accountID
	if idx := strings.Index(accountID, "|"); idx > 0 {
		idPart = accountID[:idx]
	}
	if _, err := strconv.ParseInt(idPart, 10, 64); err != nil {
		return "", fmt.Errorf("invalid telegram account ID %q: %w", accountID, err)
	}
	return idPart, nil
}
