package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facedesk/internal/testutil"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: "attempt", Body: []byte(`{"id":"1"}`)}))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := receive(t, ch)
	assert.Equal(t, "attempt", msg.Type)
	assert.JSONEq(t, `{"id":"1"}`, string(msg.Body))

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestInMemoryPublishHonoursContext(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Type: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Publish(ctx, Message{Type: "b"}), context.DeadlineExceeded)
}

func TestRedisQueueRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewRedisQueue(client, "", testutil.NopLogger())
	q.timeout = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, Message{Type: "attempt", Body: []byte(`{"message":"a|b"}`)}))
	require.NoError(t, q.Publish(ctx, Message{Type: "attempt", Body: []byte(`{"n":2}`)}))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.True(t, mr.Exists(DefaultKey))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	first := receive(t, ch)
	assert.Equal(t, "attempt", first.Type)
	assert.Equal(t, `{"message":"a|b"}`, string(first.Body))
	assert.Equal(t, `{"n":2}`, string(receive(t, ch).Body))
}

func TestNewBackends(t *testing.T) {
	q, err := New("memory", nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &InMemory{}, q)

	_, err = New("redis", nil, nil)
	assert.Error(t, err)

	_, err = New("kafka", nil, nil)
	assert.Error(t, err)
}

func TestDeserializeWithoutType(t *testing.T) {
	assert.Equal(t, Message{Body: []byte("raw")}, deserialize("raw"))
	assert.Equal(t, Message{Type: "t", Body: []byte("x|y")}, deserialize("t|x|y"))
}
