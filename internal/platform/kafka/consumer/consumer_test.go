package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func rec(partition int32, offset int64, value string) *kgo.Record {
	return &kgo.Record{
		Topic:     "facts",
		Partition: partition,
		Offset:    offset,
		Key:       []byte("AB123456C"),
		Value:     []byte(value),
		Headers:   []kgo.RecordHeader{{Key: "attempt", Value: []byte("1")}},
	}
}

func TestDispatchPreservesPartitionOrder(t *testing.T) {
	var mu sync.Mutex
	seen := map[int32][]int64{}
	h := HandlerFunc(func(_ context.Context, msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen[msg.Partition] = append(seen[msg.Partition], msg.Offset)
		return nil
	})

	done, err := dispatch(context.Background(), h, [][]*kgo.Record{
		{rec(0, 1, "a"), rec(0, 2, "b"), rec(0, 3, "c")},
		{rec(1, 7, "x"), rec(1, 8, "y")},
	})
	require.NoError(t, err)
	assert.Len(t, done, 5)
	assert.Equal(t, []int64{1, 2, 3}, seen[0])
	assert.Equal(t, []int64{7, 8}, seen[1])
}

func TestDispatchStopsPartitionAtFailure(t *testing.T) {
	boom := errors.New("boom")
	h := HandlerFunc(func(_ context.Context, msg *Message) error {
		if msg.Partition == 0 && msg.Offset == 2 {
			return boom
		}
		return nil
	})

	done, err := dispatch(context.Background(), h, [][]*kgo.Record{
		{rec(0, 1, "a"), rec(0, 2, "b"), rec(0, 3, "c")},
		{rec(1, 7, "x")},
	})
	require.ErrorIs(t, err, boom)

	var committed []int64
	for _, r := range done {
		if r.Partition == 0 {
			committed = append(committed, r.Offset)
		}
	}
	assert.Equal(t, []int64{1}, committed, "records after the failure must stay uncommitted")
	assert.Len(t, done, 2)
}

func TestToMessage(t *testing.T) {
	msg := toMessage(rec(3, 42, `{"nino":"AB123456C"}`))
	assert.Equal(t, "facts", msg.Topic)
	assert.Equal(t, int32(3), msg.Partition)
	assert.Equal(t, int64(42), msg.Offset)
	assert.Equal(t, "1", msg.Headers["attempt"])
	assert.JSONEq(t, `{"nino":"AB123456C"}`, string(msg.Value))
}

func TestNewRequiresTopics(t *testing.T) {
	_, err := New(Config{Brokers: []string{"localhost:9092"}, Group: "g"}, HandlerFunc(nil))
	require.Error(t, err)
}
