package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(false)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, TypeTaskCompleted)
	require.NoError(t, err)

	e := New(TypeTaskCompleted, "wf1", "t1", "echo", "COMPLETED", "")
	bus.Notify(ctx, e)

	select {
	case msg := <-msgs:
		decoded, err := Decode(msg)
		require.NoError(t, err)
		assert.Equal(t, e.ID, decoded.ID)
		assert.Equal(t, TypeTaskCompleted, decoded.Type)
		assert.Equal(t, "wf1", decoded.WorkflowID)
		assert.Equal(t, "t1", decoded.TaskID)
		assert.Equal(t, string(TypeTaskCompleted), msg.Metadata.Get("event_type"))
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("等待事件超时")
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(false)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.SubscribeAll(ctx)
	require.NoError(t, err)

	bus.Notify(ctx, New(TypeWorkflowStarted, "wf1", "", "", "RUNNING", ""))
	bus.Notify(ctx, New(TypeTaskStarted, "wf1", "t1", "echo", "RUNNING", ""))

	received := 0
	timeout := time.After(2 * time.Second)
	for received < 2 {
		select {
		case msg := <-msgs:
			msg.Ack()
			received++
		case <-timeout:
			t.Fatalf("等待事件超时，已收到: %d", received)
		}
	}
}

func TestMultiNotifier(t *testing.T) {
	var got []*Event
	recorder := notifierFunc(func(ctx context.Context, e *Event) {
		got = append(got, e)
	})

	multi := MultiNotifier{NopNotifier{}, recorder}
	multi.Notify(context.Background(), New(TypeWorkflowCompleted, "wf1", "", "", "COMPLETED", ""))

	assert.Len(t, got, 1)
}

type notifierFunc func(ctx context.Context, e *Event)

func (f notifierFunc) Notify(ctx context.Context, e *Event) { f(ctx, e) }
