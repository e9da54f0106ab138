package sse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/gthanmon/gemini-account-manager/internal/redis"
)

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.Events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.Events:
		t.Fatalf("unexpected event %q", ev.Type)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBroker_Local(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()

	owner := b.Subscribe("u1")
	other := b.Subscribe("u2")
	admin := b.Subscribe(AllOwners)
	assert.Equal(t, 3, b.TotalClients())

	ev := Event{Type: "slot_expired", Data: json.RawMessage(`{"slotIndex":2}`)}
	require.NoError(t, b.Publish(context.Background(), "u1", ev))

	assert.Equal(t, ev, receive(t, owner))
	assert.Equal(t, ev, receive(t, admin))
	assertNoEvent(t, other)
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()

	c := b.Subscribe("u1")
	b.Unsubscribe(c)
	b.Unsubscribe(c)

	_, open := <-c.Done
	assert.False(t, open)
	assert.Equal(t, 0, b.TotalClients())

	require.NoError(t, b.Publish(context.Background(), "u1", Event{Type: "x"}))
}

func TestBroker_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := &redisclient.Client{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()})}
	defer client.Close()

	b := NewBroker(client)
	defer b.Close()

	c := b.Subscribe("u1")
	channel := redisclient.NotificationChannel("u1")
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] == 1
	}, time.Second, 5*time.Millisecond)

	ev := Event{Type: "slot_expiring", Data: json.RawMessage(`{"accountId":"a1"}`)}
	require.NoError(t, b.Publish(context.Background(), "u1", ev))

	got := receive(t, c)
	assert.Equal(t, ev.Type, got.Type)
	assert.JSONEq(t, string(ev.Data), string(got.Data))
}

func TestBroker_RedisResubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := &redisclient.Client{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()})}
	defer client.Close()

	b := NewBroker(client)
	defer b.Close()

	channel := redisclient.NotificationChannel("u1")
	subscribers := func() int { return mr.PubSubNumSub(channel)[channel] }

	for range 3 {
		c := b.Subscribe("u1")
		require.Eventually(t, func() bool { return subscribers() == 1 }, time.Second, 5*time.Millisecond)
		b.Unsubscribe(c)
		require.Eventually(t, func() bool { return subscribers() == 0 }, time.Second, 5*time.Millisecond)
	}

	c := b.Subscribe("u1")
	require.Eventually(t, func() bool { return subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Publish(context.Background(), "u1", Event{Type: "slot_expired", Data: json.RawMessage(`{}`)}))
	assert.Equal(t, "slot_expired", receive(t, c).Type)
	assertNoEvent(t, c)
	assert.Equal(t, 1, subscribers())
}

func TestBroker_SecondClientSharesSubscription(t *testing.T) {
	mr := miniredis.RunT(t)
	client := &redisclient.Client{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()})}
	defer client.Close()

	b := NewBroker(client)
	defer b.Close()

	channel := redisclient.NotificationChannel("u1")
	first := b.Subscribe("u1")
	second := b.Subscribe("u1")
	require.Eventually(t, func() bool { return mr.PubSubNumSub(channel)[channel] == 1 }, time.Second, 5*time.Millisecond)

	b.Unsubscribe(first)
	require.NoError(t, b.Publish(context.Background(), "u1", Event{Type: "slot_expiring", Data: json.RawMessage(`{}`)}))
	assert.Equal(t, "slot_expiring", receive(t, second).Type)
	assertNoEvent(t, second)
}
