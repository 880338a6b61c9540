package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/storefront/internal/entity"
	"github.com/Additional-Code/storefront/internal/messaging"
	outboxrepo "github.com/Additional-Code/storefront/internal/repository/outbox"
	"github.com/Additional-Code/storefront/internal/testutil/dbtest"
)

type recordingClient struct {
	mu   sync.Mutex
	sent []messaging.Message
	err  error
}

func (c *recordingClient) Publish(_ context.Context, msgs ...messaging.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msgs...)
	return nil
}

func (c *recordingClient) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (c *recordingClient) Topic() string { return "checkout.orders" }
func (c *recordingClient) Enabled() bool { return true }

func (c *recordingClient) published() []messaging.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]messaging.Message(nil), c.sent...)
}

func seedEvents(t *testing.T, repo *outboxrepo.Repository, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Insert(context.Background(), nil, &entity.OutboxEvent{
			Topic:    "checkout.orders",
			EventKey: "order-1",
			Payload:  []byte(`{"type":"order.placed"}`),
		}))
	}
}

func TestRelayOncePublishesAndMarksSent(t *testing.T) {
	ctx := context.Background()
	repo := outboxrepo.NewRepository(dbtest.Open(t))
	seedEvents(t, repo, 3)

	client := &recordingClient{}
	relay := newRelay(repo, client, time.Second, 2, true, zap.NewNop())

	n, err := relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	sent := client.published()
	require.Len(t, sent, 3)
	assert.Equal(t, "checkout.orders", sent[0].Topic)
	assert.Equal(t, []byte("order-1"), sent[0].Key)
	assert.NotEmpty(t, sent[0].Headers[messaging.HeaderEventID])

	pending, err := repo.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRelayKeepsEventsWhenPublishFails(t *testing.T) {
	ctx := context.Background()
	repo := outboxrepo.NewRepository(dbtest.Open(t))
	seedEvents(t, repo, 2)

	client := &recordingClient{err: errors.New("broker unavailable")}
	relay := newRelay(repo, client, time.Second, 10, true, zap.NewNop())

	_, err := relay.RelayOnce(ctx)
	require.Error(t, err)

	pending, err := repo.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	client.err = nil
	n, err := relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestConcurrentRelaysPublishEachEventOnce(t *testing.T) {
	ctx := context.Background()
	repo := outboxrepo.NewRepository(dbtest.Open(t))
	seedEvents(t, repo, 9)

	client := &recordingClient{}
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		relay := newRelay(repo, client, time.Second, 2, true, zap.NewNop())
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				n, err := relay.RelayOnce(ctx)
				if !assert.NoError(t, err) || n == 0 {
					return
				}
			}
		}()
	}
	wg.Wait()

	seen := map[string]int{}
	for _, msg := range client.published() {
		seen[msg.Headers[messaging.HeaderEventID]]++
	}
	assert.Len(t, seen, 9)
	for id, n := range seen {
		assert.Equal(t, 1, n, "event %s", id)
	}

	pending, err := repo.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRelayLoopDrainsOnStart(t *testing.T) {
	ctx := context.Background()
	repo := outboxrepo.NewRepository(dbtest.Open(t))
	seedEvents(t, repo, 5)

	client := &recordingClient{}
	relay := newRelay(repo, client, 10*time.Millisecond, 2, true, zap.NewNop())

	require.NoError(t, relay.start(ctx))
	assert.Eventually(t, func() bool { return len(client.published()) == 5 }, time.Second, 10*time.Millisecond)
	require.NoError(t, relay.stop(ctx))
}

func TestDisabledRelayDoesNotStart(t *testing.T) {
	relay := newRelay(nil, &recordingClient{}, time.Second, 10, false, zap.NewNop())

	require.NoError(t, relay.start(context.Background()))
	assert.Nil(t, relay.cancel)
	assert.NoError(t, relay.stop(context.Background()))
}
