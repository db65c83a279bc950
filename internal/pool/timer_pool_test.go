package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerPool(t *testing.T) {
	assert := assert.New(t)

	t.Run("Get and Put", func(t *testing.T) {
		timer1 := GetTimer(time.Second)
		assert.NotNil(timer1)

		PutTimer(timer1)

		timer2 := GetTimer(20 * time.Millisecond)
		assert.NotNil(timer2)

		<-timer2.C
		PutTimer(timer2)
	})

	t.Run("Put Active Timer", func(t *testing.T) {
		timer1 := GetTimer(100 * time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		PutTimer(timer1)

		begin := time.Now()
		timer2 := GetTimer(150 * time.Millisecond)

		select {
		case fired := <-timer2.C:
			assert.GreaterOrEqual(fired.Sub(begin), 120*time.Millisecond)
		case <-time.After(time.Second):
			t.Error("timer2 should have fired")
		}
		PutTimer(timer2)
	})

	t.Run("Concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(10 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}

func TestWait(t *testing.T) {
	t.Run("elapsed", func(t *testing.T) {
		assert.True(t, Wait(context.Background(), 10*time.Millisecond, nil))
	})

	t.Run("stopped", func(t *testing.T) {
		stop := make(chan struct{})
		close(stop)
		assert.False(t, Wait(context.Background(), time.Second, stop))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.False(t, Wait(ctx, time.Second, nil))
		assert.False(t, Wait(ctx, 0, nil))
	})
}
