package stream

import (
	"bytes"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func snapshotOf(s string) func() ([]byte, error) {
	return func() ([]byte, error) { return []byte(s), nil }
}

func nextEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func nextKeepAlive(t *testing.T, sub *Subscription) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.Events():
			if ev.Data == nil {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for keep-alive")
		}
	}
}

func TestSubscribe_InitialSnapshotFirst(t *testing.T) {
	b := New(time.Hour, 4, nil)
	defer b.Close()

	sub, err := b.Subscribe(snapshotOf(`{"n":1}`))
	require.NoError(t, err)
	require.NotEmpty(t, sub.ID())

	ev := nextEvent(t, sub)
	require.Equal(t, `{"n":1}`, string(ev.Data))
	require.Equal(t, 1, b.Len())
}

func TestSubscribe_SnapshotError(t *testing.T) {
	b := New(time.Hour, 4, nil)
	defer b.Close()

	_, err := b.Subscribe(func() ([]byte, error) { return nil, stderrors.New("boom") })
	require.Error(t, err)
	require.Equal(t, 0, b.Len())
}

func TestSubscriberIsolation(t *testing.T) {
	b := New(10*time.Millisecond, 4, nil)
	defer b.Close()

	first, err := b.Subscribe(snapshotOf(`{"who":"first"}`))
	require.NoError(t, err)
	second, err := b.Subscribe(snapshotOf(`{"who":"second"}`))
	require.NoError(t, err)
	require.NotEqual(t, first.ID(), second.ID())

	require.Equal(t, `{"who":"first"}`, string(nextEvent(t, first).Data))
	require.Equal(t, `{"who":"second"}`, string(nextEvent(t, second).Data))

	b.Unsubscribe(first)
	<-first.Done()
	require.Equal(t, 1, b.Len())

	// The remaining subscriber keeps receiving pulses.
	nextKeepAlive(t, second)
	nextKeepAlive(t, second)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	b := New(time.Hour, 1, nil)
	sub, err := b.Subscribe(snapshotOf(`{}`))
	require.NoError(t, err)

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)
	require.Equal(t, 0, b.Len())
}

func TestPublish_FanOut(t *testing.T) {
	b := New(time.Hour, 4, nil)
	defer b.Close()

	a, err := b.Subscribe(snapshotOf(`0`))
	require.NoError(t, err)
	c, err := b.Subscribe(snapshotOf(`0`))
	require.NoError(t, err)
	nextEvent(t, a)
	nextEvent(t, c)

	require.Equal(t, 2, b.Publish([]byte(`1`)))
	require.Equal(t, `1`, string(nextEvent(t, a).Data))
	require.Equal(t, `1`, string(nextEvent(t, c).Data))
}

func TestPublish_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := New(time.Hour, 1, nil)
	defer b.Close()

	slow, err := b.Subscribe(snapshotOf(`0`))
	require.NoError(t, err)

	// Buffer already holds the initial frame; this publish must not block.
	done := make(chan int)
	go func() { done <- b.Publish([]byte(`1`)) }()

	select {
	case n := <-done:
		require.Equal(t, 0, n)
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	require.Equal(t, `0`, string(nextEvent(t, slow).Data))
}

func TestClose(t *testing.T) {
	b := New(time.Hour, 1, nil)
	sub, err := b.Subscribe(snapshotOf(`{}`))
	require.NoError(t, err)

	b.Close()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not ended by Close")
	}
	require.Equal(t, 0, b.Len())

	_, err = b.Subscribe(snapshotOf(`{}`))
	require.ErrorIs(t, err, ErrClosed)
}

func TestEvent_WriteTo(t *testing.T) {
	var buf bytes.Buffer

	_, err := Event{Data: []byte(`{"a":1}`)}.WriteTo(&buf)
	require.NoError(t, err)
	_, err = KeepAlive.WriteTo(&buf)
	require.NoError(t, err)
	_, err = Event{Data: []byte("one\ntwo")}.WriteTo(&buf)
	require.NoError(t, err)

	require.Equal(t, "data: {\"a\":1}\n\n: heartbeat\n\ndata: one\ndata: two\n\n", buf.String())
}
