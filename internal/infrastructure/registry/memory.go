package registry

import (
	"sync"

	"livecast/internal/core/domain"
)

// MemorySignalingRegistry keeps signaling connection state in process
// memory. Concurrent updates are last-writer-wins.
type MemorySignalingRegistry struct {
	mu       sync.RWMutex
	clients  map[domain.ClientID]domain.SignalingConnection
	watchers []func(domain.SignalingConnection)
}

func NewMemorySignalingRegistry() *MemorySignalingRegistry {
	return &MemorySignalingRegistry{
		clients: make(map[domain.ClientID]domain.SignalingConnection),
	}
}

func (r *MemorySignalingRegistry) SetClient(clientID domain.ClientID, connected bool) error {
	record := domain.SignalingConnection{ClientID: clientID, Connected: connected}

	r.mu.Lock()
	r.clients[clientID] = record
	watchers := make([]func(domain.SignalingConnection), len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.Unlock()

	for _, fn := range watchers {
		fn(record)
	}
	return nil
}

func (r *MemorySignalingRegistry) GetClient(clientID domain.ClientID) (domain.SignalingConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.clients[clientID]
	return record, ok
}

func (r *MemorySignalingRegistry) Watch(fn func(domain.SignalingConnection)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}

// MemoryMediaRegistry keeps media transport state in process memory.
type MemoryMediaRegistry struct {
	mu       sync.RWMutex
	clients  map[domain.ClientID]domain.MediaConnection
	watchers []func(domain.MediaConnection)
}

func NewMemoryMediaRegistry() *MemoryMediaRegistry {
	return &MemoryMediaRegistry{
		clients: make(map[domain.ClientID]domain.MediaConnection),
	}
}

func (r *MemoryMediaRegistry) SetClient(clientID domain.ClientID, peerID domain.TransportPeerID, connected bool) error {
	record := domain.MediaConnection{ClientID: clientID, PeerID: peerID, Connected: connected}

	r.mu.Lock()
	r.clients[clientID] = record
	watchers := make([]func(domain.MediaConnection), len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.Unlock()

	for _, fn := range watchers {
		fn(record)
	}
	return nil
}

func (r *MemoryMediaRegistry) GetClient(clientID domain.ClientID) (domain.MediaConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.clients[clientID]
	return record, ok
}

func (r *MemoryMediaRegistry) Watch(fn func(domain.MediaConnection)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}
