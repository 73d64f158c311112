package app

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBroker_DeliversPerSession(t *testing.T) {
	b := NewBroker()
	a, cancelA := b.Subscribe("sim-1")
	defer cancelA()
	other, cancelOther := b.Subscribe("sim-2")
	defer cancelOther()

	n := b.Publish(Event{Type: EventPaused, SessionID: "sim-1"})

	assert.Equal(t, 1, n)
	assert.Equal(t, EventPaused, (<-a).Type)
	assert.Len(t, other, 0)
}

func TestBroker_DropsWhenFull(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("sim-1")
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(Event{Type: EventTraded, SessionID: "sim-1"})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestBroker_CancelClosesOnce(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("sim-1")

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Publish(Event{SessionID: "sim-1"}))
	assert.Empty(t, b.subs)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("sim-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()
	<-done
	unlockA()
	assert.Equal(t, 0, k.size())
}
