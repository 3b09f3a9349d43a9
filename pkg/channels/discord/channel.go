// Package discord connects to the Discord gateway via discordgo.
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/relaybot/pkg/bus"
	"github.com/tinyland-inc/relaybot/pkg/channels"
	"github.com/tinyland-inc/relaybot/pkg/config"
	"github.com/tinyland-inc/relaybot/pkg/logger"
)

const serviceEndpoint = "https://discord.com/api"

type Channel struct {
	*channels.BaseChannel
	session     *discordgo.Session
	mentionOnly bool
	botID       string
	botName     string
}

func New(cfg config.DiscordConfig, msgBus *bus.MessageBus) (*Channel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Channel{
		BaseChannel: channels.NewBaseChannel("discord", serviceEndpoint, msgBus, cfg.AllowFrom),
		session:     session,
		mentionOnly: cfg.MentionOnly,
	}, nil
}

func (c *Channel) Start(_ context.Context) error {
	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("resolve bot user: %w", err)
	}
	c.botID = user.ID
	c.botName = user.Username

	c.SetRunning(true)
	logger.InfoCF("discord", "Connected", map[string]any{
		"username": c.botName,
	})
	return nil
}

func (c *Channel) Stop(_ context.Context) error {
	c.SetRunning(false)
	return c.session.Close()
}

func (c *Channel) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == c.botID || m.Author.Bot {
		return
	}
	if m.Content == "" {
		return
	}

	var mentions []string
	for _, u := range m.Mentions {
		if u.ID == c.botID {
			mentions = []string{c.botID}
			break
		}
	}

	// Guild messages can be restricted to explicit mentions; DMs always
	// go through.
	if c.mentionOnly && m.GuildID != "" && len(mentions) == 0 {
		return
	}

	content := m.Content
	if len(mentions) > 0 {
		content = strings.TrimSpace(strings.ReplaceAll(content, "<@"+c.botID+">", "@"+c.botName))
	}

	senderID := m.Author.ID
	if m.Author.Username != "" {
		senderID = senderID + "|" + m.Author.Username
	}
	senderName := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		senderName = m.Member.Nick
	}

	c.HandleMessage(
		m.ID,
		senderID,
		senderName,
		m.ChannelID,
		content,
		c.botID,
		c.botName,
		mentions,
	)
}

func (c *Channel) Send(conversationID, text string) (string, error) {
	sent, err := c.session.ChannelMessageSend(conversationID, text)
	if err != nil {
		return "", fmt.Errorf("discord send: %w", err)
	}
	return sent.ID, nil
}

// CreateDirectConversation opens a DM channel with the user.
func (c *Channel) CreateDirectConversation(accountID string) (string, error) {
	idPart := accountID
	if idx := strings.Index(accountID, "|"); idx > 0 {
		idPart = accountID[:idx]
	}
	ch, err := c.session.UserChannelCreate(idPart)
	if err != nil {
		return "", fmt.Errorf("open discord DM: %w", err)
	}
	return ch.ID, nil
}
