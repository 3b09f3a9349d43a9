package channels

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tinyland-inc/relaybot/pkg/logger"
	"github.com/tinyland-inc/relaybot/pkg/metrics"
	"github.com/tinyland-inc/relaybot/pkg/routing"
)

// Manager multiplexes the registered channel adapters and implements
// routing.Transport on top of them.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
	meters   *metrics.Store
}

func NewManager(meters *metrics.Store) *Manager {
	return &Manager{
		channels: make(map[string]Channel),
		meters:   meters,
	}
}

func (m *Manager) RegisterChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
	logger.InfoCF("channels", "Channel registered", map[string]any{
		"channel": ch.Name(),
	})
}

func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// StartAll starts every registered channel. A channel failing to start is
// logged and skipped so the rest keep running.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			logger.ErrorCF("channels", "Failed to start channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
			continue
		}
		logger.InfoC("channels", "Channel started: "+name)
	}
}

func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			logger.WarnCF("channels", "Failed to stop channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
}

// Send implements routing.Transport.
func (m *Manager) Send(p routing.Party, text string) routing.DeliveryResult {
	ch, ok := m.GetChannel(p.ChannelID)
	if !ok {
		return routing.DeliveryResult{Err: fmt.Errorf("%w: unknown channel %q", routing.ErrDeliveryFailed, p.ChannelID)}
	}
	if !ch.IsRunning() {
		return routing.DeliveryResult{Err: fmt.Errorf("%w: channel %q is not running", routing.ErrDeliveryFailed, p.ChannelID)}
	}

	start := time.Now()
	id, err := ch.Send(p.Conversation.ID, text)
	if m.meters != nil {
		m.meters.Record(metrics.DeliveryEvent{
			Channel:   p.ChannelID,
			Success:   err == nil,
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		})
	}
	if err != nil {
		return routing.DeliveryResult{Err: err}
	}
	return routing.DeliveryResult{Success: true, MessageID: id}
}

// CreateDirectConversation implements routing.Transport.
func (m *Manager) CreateDirectConversation(p routing.Party) (routing.Conversation, error) {
	ch, ok := m.GetChannel(p.ChannelID)
	if !ok {
		return routing.Conversation{}, fmt.Errorf("unknown channel %q", p.ChannelID)
	}
	if !p.HasAccount() {
		return routing.Conversation{}, routing.ErrInvalidArgument
	}
	id, err := ch.CreateDirectConversation(p.Account.ID)
	if err != nil {
		return routing.Conversation{}, err
	}
	return routing.Conversation{ID: id}, nil
}
