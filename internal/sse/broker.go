package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/gthanmon/gemini-account-manager/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second

	// AllOwners is the stream admins subscribe to; it receives every owner's events.
	AllOwners = "*"

	clientBuffer = 100
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	UserID string
	Events chan Event
	Done   chan struct{}
}

// stream is the set of clients watching one owner. stop ends the owner's
// Redis subscription and is nil for a process-local broker.
type stream struct {
	clients map[*Client]bool
	stop    context.CancelFunc
}

// Broker fans events out to SSE clients grouped by owner. With a Redis client
// events travel through pub/sub so every replica's clients receive them;
// without one delivery is process-local.
type Broker struct {
	redis   *redisclient.Client
	streams map[string]*stream // userID -> clients and subscription
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		streams: make(map[string]*stream),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(userID string) *Client {
	client := &Client{
		UserID: userID,
		Events: make(chan Event, clientBuffer),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	st := b.streams[userID]
	if st == nil {
		st = &stream{clients: make(map[*Client]bool)}
		if b.redis != nil {
			ctx, stop := context.WithCancel(b.ctx)
			st.stop = stop
			go b.subscribeToRedis(ctx, userID)
		}
		b.streams[userID] = st
	}
	st.clients[client] = true
	clientCount := len(st.clients)
	b.mu.Unlock()

	log.Info().
		Str("userId", userID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.streams[client.UserID]
	if !ok || !st.clients[client] {
		return
	}
	delete(st.clients, client)
	close(client.Done)

	if len(st.clients) == 0 {
		if st.stop != nil {
			st.stop()
		}
		delete(b.streams, client.UserID)
	}

	log.Info().
		Str("userId", client.UserID).
		Int("clientCount", len(st.clients)).
		Msg("sse client unsubscribed")
}

// Publish delivers event to the owner's stream and to the admin stream.
func (b *Broker) Publish(ctx context.Context, userID string, event Event) error {
	for _, target := range []string{userID, AllOwners} {
		if err := b.publish(ctx, target, event); err != nil {
			return err
		}
	}
	return nil
}

func (b *Broker) publish(ctx context.Context, userID string, event Event) error {
	if b.redis == nil {
		b.broadcast(userID, event)
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, redisclient.NotificationChannel(userID), data).Err()
}

// subscribeToRedis relays the owner's channel until ctx is cancelled, either
// by the last client leaving or by Close.
func (b *Broker) subscribeToRedis(ctx context.Context, userID string) {
	channel := redisclient.NotificationChannel(userID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("userId", userID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(userID, event)
		}
	}
}

func (b *Broker) broadcast(userID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := b.streams[userID]
	if st == nil {
		return
	}
	for client := range st.clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("userId", userID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, st := range b.streams {
		for client := range st.clients {
			close(client.Done)
		}
	}
	b.streams = make(map[string]*stream)
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, st := range b.streams {
		total += len(st.clients)
	}
	return total
}
