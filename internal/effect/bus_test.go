package effect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe()
	assert.Equal(t, 1, b.Subscribers())

	b.Emit(ButtonActive("eventos-fogo", true))

	select {
	case e := <-ch:
		assert.Equal(t, KindButtonActive, e.Kind)
		assert.Equal(t, "eventos-fogo", e.Target)
		assert.True(t, e.Active)
	case <-time.After(time.Second):
		t.Fatal("no effect delivered")
	}

	b.Unsubscribe(ch)
	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.Subscribers())
	_, open := <-ch
	assert.False(t, open)
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for range 200 {
		b.Emit(Info("tick"))
	}
	assert.Len(t, ch, cap(ch))
}

func TestNotify_DefaultDurations(t *testing.T) {
	assert.Equal(t, 3*time.Second, Success("ok").Duration)
	assert.Equal(t, 5*time.Second, Error("bad").Duration)
	assert.Equal(t, 4*time.Second, Warning("hmm").Duration)
	assert.Equal(t, 2*time.Second, Notify(LevelInfo, "Exibindo: CO", 2*time.Second).Duration)
	assert.Equal(t, 4*time.Second, Notify("unknown", "x", 0).Duration)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	Fanout{&r, Discard}.Emit(Loading(true))
	r.Emit(Loading(false))
	r.Emit(Success("done"))

	require.Len(t, r.OfKind(KindLoading), 2)
	last, ok := r.Last(KindLoading)
	require.True(t, ok)
	assert.False(t, last.Active)

	r.Reset()
	assert.Empty(t, r.Effects())
	_, ok = r.Last(KindNotify)
	assert.False(t, ok)
}
