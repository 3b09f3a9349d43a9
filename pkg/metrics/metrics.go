// Package metrics aggregates per-channel delivery metrics.
package metrics

import (
	"maps"
	"sync"
	"time"
)

// DeliveryEvent is one outbound delivery attempt.
type DeliveryEvent struct {
	Channel   string
	Success   bool
	Duration  time.Duration
	Timestamp time.Time
}

// ChannelMeter tracks delivery metrics for one channel.
type ChannelMeter struct {
	Channel      string
	Sent         int64
	Failed       int64
	TotalLatency time.Duration
	LastActivity time.Time
}

// Store aggregates delivery events per channel.
type Store struct {
	mu     sync.RWMutex
	meters map[string]*ChannelMeter
}

// NewStore creates an empty metrics store.
func NewStore() *Store {
	return &Store{
		meters: make(map[string]*ChannelMeter),
	}
}

// Record adds a delivery event to the store.
func (s *Store) Record(event DeliveryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meter, ok := s.meters[event.Channel]
	if !ok {
		meter = &ChannelMeter{Channel: event.Channel}
		s.meters[event.Channel] = meter
	}

	if event.Success {
		meter.Sent++
	} else {
		meter.Failed++
	}
	meter.TotalLatency += event.Duration
	meter.LastActivity = event.Timestamp
}

// GetChannelMeter returns metrics for a specific channel.
func (s *Store) GetChannelMeter(channel string) (*ChannelMeter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meters[channel]
	return m, ok
}

// GetAllMeters returns a snapshot of all channel meters.
func (s *Store) GetAllMeters() map[string]*ChannelMeter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]*ChannelMeter, len(s.meters))
	maps.Copy(result, s.meters)
	return result
}
