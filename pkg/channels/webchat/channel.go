// Package webchat serves a WebSocket endpoint customers connect to
// directly, without any external chat platform.
package webchat

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tinyland-inc/relaybot/pkg/bus"
	"github.com/tinyland-inc/relaybot/pkg/channels"
	"github.com/tinyland-inc/relaybot/pkg/config"
	"github.com/tinyland-inc/relaybot/pkg/logger"
)

const botName = "relaybot"

// clientMessage is what a connected browser sends.
type clientMessage struct {
	Name string `json:"name,omitempty"`
	Text string `json:"text"`
}

// serverMessage is what the bot pushes to a browser.
type serverMessage struct {
	Text string `json:"text"`
}

type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	account string
	name    string
}

func (s *session) write(text string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(serverMessage{Text: text})
}

type Channel struct {
	*channels.BaseChannel
	addr     string
	server   *http.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session // conversation ID -> session
	accounts map[string]string   // account ID -> conversation ID
}

func New(cfg config.WebchatConfig, msgBus *bus.MessageBus) *Channel {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	c := &Channel{
		BaseChannel: channels.NewBaseChannel("webchat", "ws://"+addr, msgBus, cfg.AllowFrom),
		addr:        addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
		accounts: make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", c.handleWS)
	c.server = &http.Server{Addr: addr, Handler: mux}
	return c
}

func (c *Channel) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("webchat listen: %w", err)
	}

	go func() {
		if err := c.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("webchat", "Server stopped", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	c.SetRunning(true)
	logger.InfoCF("webchat", "Listening", map[string]any{
		"addr": c.addr,
	})
	return nil
}

func (c *Channel) Stop(ctx context.Context) error {
	c.SetRunning(false)
	return c.server.Shutdown(ctx)
}

func (c *Channel) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conversationID := "web-" + uuid.New().String()
	accountID := "guest-" + strings.TrimPrefix(conversationID, "web-")
	sess := &session{conn: conn, account: accountID}

	c.mu.Lock()
	c.sessions[conversationID] = sess
	c.accounts[accountID] = conversationID
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.sessions, conversationID)
		delete(c.accounts, accountID)
		c.mu.Unlock()
		conn.Close()

		name := sess.name
		if name == "" {
			name = accountID
		}
		c.HandleDisconnect(accountID, name, conversationID)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Text == "" {
			continue
		}
		if msg.Name != "" {
			sess.name = msg.Name
		}
		name := sess.name
		if name == "" {
			name = accountID
		}

		c.HandleMessage(
			uuid.New().String(),
			accountID,
			name,
			conversationID,
			msg.Text,
			botName,
			botName,
			nil,
		)
	}
}

func (c *Channel) Send(conversationID, text string) (string, error) {
	c.mu.Lock()
	sess, ok := c.sessions[conversationID]
	c.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("webchat conversation %q is not connected", conversationID)
	}
	if err := sess.write(text); err != nil {
		return "", fmt.Errorf("webchat send: %w", err)
	}
	return uuid.New().String(), nil
}

// CreateDirectConversation maps back to the account's live WebSocket
// session; webchat has no separate DM concept.
func (c *Channel) CreateDirectConversation(accountID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conv, ok := c.accounts[accountID]; ok {
		return conv, nil
	}
	return "", fmt.Errorf("webchat account %q is not connected", accountID)
}
