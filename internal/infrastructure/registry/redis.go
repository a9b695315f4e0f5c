package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"livecast/internal/core/domain"
)

const redisOpTimeout = 5 * time.Second

// RedisSignalingRegistry persists signaling connection state in Redis
// so it survives coordinator restarts. Watchers are process-local.
type RedisSignalingRegistry struct {
	client *redis.Client

	mu       sync.Mutex
	watchers []func(domain.SignalingConnection)
}

func NewRedisSignalingRegistry(client *redis.Client) *RedisSignalingRegistry {
	return &RedisSignalingRegistry{client: client}
}

func signalingKey(clientID domain.ClientID) string {
	return fmt.Sprintf("livecast:signaling:%s", clientID)
}

func (r *RedisSignalingRegistry) SetClient(clientID domain.ClientID, connected bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	err := r.client.HSet(ctx, signalingKey(clientID), map[string]interface{}{
		"client_id": string(clientID),
		"connected": connected,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to store signaling state: %w", err)
	}

	record := domain.SignalingConnection{ClientID: clientID, Connected: connected}
	r.mu.Lock()
	watchers := make([]func(domain.SignalingConnection), len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.Unlock()

	for _, fn := range watchers {
		fn(record)
	}
	return nil
}

func (r *RedisSignalingRegistry) GetClient(clientID domain.ClientID) (domain.SignalingConnection, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := r.client.HGetAll(ctx, signalingKey(clientID)).Result()
	if err != nil || len(data) == 0 {
		return domain.SignalingConnection{}, false
	}
	return domain.SignalingConnection{
		ClientID:  domain.ClientID(data["client_id"]),
		Connected: data["connected"] == "1" || data["connected"] == "true",
	}, true
}

func (r *RedisSignalingRegistry) Watch(fn func(domain.SignalingConnection)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}

// RedisMediaRegistry persists media transport state in Redis.
type RedisMediaRegistry struct {
	client *redis.Client

	mu       sync.Mutex
	watchers []func(domain.MediaConnection)
}

func NewRedisMediaRegistry(client *redis.Client) *RedisMediaRegistry {
	return &RedisMediaRegistry{client: client}
}

func mediaKey(clientID domain.ClientID) string {
	return fmt.Sprintf("livecast:media:%s", clientID)
}

func (r *RedisMediaRegistry) SetClient(clientID domain.ClientID, peerID domain.TransportPeerID, connected bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	err := r.client.HSet(ctx, mediaKey(clientID), map[string]interface{}{
		"client_id": string(clientID),
		"peer_id":   string(peerID),
		"connected": connected,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to store media state: %w", err)
	}

	record := domain.MediaConnection{ClientID: clientID, PeerID: peerID, Connected: connected}
	r.mu.Lock()
	watchers := make([]func(domain.MediaConnection), len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.Unlock()

	for _, fn := range watchers {
		fn(record)
	}
	return nil
}

func (r *RedisMediaRegistry) GetClient(clientID domain.ClientID) (domain.MediaConnection, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := r.client.HGetAll(ctx, mediaKey(clientID)).Result()
	if err != nil || len(data) == 0 {
		return domain.MediaConnection{}, false
	}
	return domain.MediaConnection{
		ClientID:  domain.ClientID(data["client_id"]),
		PeerID:    domain.TransportPeerID(data["peer_id"]),
		Connected: data["connected"] == "1" || data["connected"] == "true",
	}, true
}

func (r *RedisMediaRegistry) Watch(fn func(domain.MediaConnection)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}
