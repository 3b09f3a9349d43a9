// Package slack connects to Slack over Socket Mode.
package slack

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/tinyland-inc/relaybot/pkg/bus"
	"github.com/tinyland-inc/relaybot/pkg/channels"
	"github.com/tinyland-inc/relaybot/pkg/config"
	"github.com/tinyland-inc/relaybot/pkg/logger"
)

const serviceEndpoint = "https://slack.com/api"

type Channel struct {
	*channels.BaseChannel
	api     *slack.Client
	sock    *socketmode.Client
	botID   string
	botName string
	cancel  context.CancelFunc
	done    chan struct{}

	nameMu sync.Mutex
	names  map[string]string
}

func New(cfg config.SlackConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, fmt.Errorf("slack channel requires bot_token and app_token")
	}
	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))

	return &Channel{
		BaseChannel: channels.NewBaseChannel("slack", serviceEndpoint, msgBus, cfg.AllowFrom),
		api:         api,
		sock:        socketmode.New(api),
		names:       make(map[string]string),
	}, nil
}

func (c *Channel) Start(ctx context.Context) error {
	auth, err := c.api.AuthTest()
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	c.botID = auth.UserID
	c.botName = auth.User

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		if err := c.sock.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			logger.ErrorCF("slack", "Socket mode stopped", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	go func() {
		defer close(c.done)
		for {
			select {
			case <-runCtx.Done():
				return
			case evt, ok := <-c.sock.Events:
				if !ok {
					return
				}
				c.handleEvent(evt)
			}
		}
	}()

	c.SetRunning(true)
	logger.InfoCF("slack", "Connected", map[string]any{
		"username": c.botName,
	})
	return nil
}

func (c *Channel) Stop(_ context.Context) error {
	c.SetRunning(false)
	if c.cancel != nil {
		c.cancel()
	}
	if c.done != nil {
		<-c.done
	}
	return nil
}

func (c *Channel) handleEvent(evt socketmode.Event) {
	if evt.Type != socketmode.EventTypeEventsAPI {
		return
	}
	apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	if evt.Request != nil {
		c.sock.Ack(*evt.Request)
	}
	if apiEvent.Type != slackevents.CallbackEvent {
		return
	}

	ev, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	// Ignore our own messages, bot posts, and edits.
	if ev.User == "" || ev.User == c.botID || ev.BotID != "" || ev.SubType != "" {
		return
	}
	if ev.Text == "" {
		return
	}

	var mentions []string
	content := ev.Text
	if tag := "<@" + c.botID + ">"; strings.Contains(content, tag) {
		mentions = []string{c.botID}
		content = strings.TrimSpace(strings.ReplaceAll(content, tag, ""))
	}

	c.HandleMessage(
		ev.TimeStamp,
		ev.User,
		c.displayName(ev.User),
		ev.Channel,
		content,
		c.botID,
		c.botName,
		mentions,
	)
}

// displayName resolves and caches the user's display name.
func (c *Channel) displayName(userID string) string {
	c.nameMu.Lock()
	if name, ok := c.names[userID]; ok {
		c.nameMu.Unlock()
		return name
	}
	c.nameMu.Unlock()

	name := userID
	if user, err := c.api.GetUserInfo(userID); err == nil {
		if user.Profile.DisplayName != "" {
			name = user.Profile.DisplayName
		} else if user.RealName != "" {
			name = user.RealName
		} else {
			name = user.Name
		}
	}

	c.nameMu.Lock()
	c.names[userID] = name
	c.nameMu.Unlock()
	return name
}

func (c *Channel) Send(conversationID, text string) (string, error) {
	_, ts, err := c.api.PostMessage(conversationID, slack.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("slack send: %w", err)
	}
	return ts, nil
}

// CreateDirectConversation opens (or reuses) the IM channel with the user.
func (c *Channel) CreateDirectConversation(accountID string) (string, error) {
	ch, _, _, err := c.api.OpenConversation(&slack.OpenConversationParameters{
		Users: []string{accountID},
	})
	if err != nil {
		return "", fmt.Errorf("open slack conversation: %w", err)
	}
	return ch.ID, nil
}
