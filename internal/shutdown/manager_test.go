package shutdown

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu    *sync.Mutex
	order *[]string
	name  string
	delay time.Duration
}

func (r recorder) Shutdown() {
	time.Sleep(r.delay)
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.order = append(*r.order, r.name)
}

func TestShutdownReverseOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	m := NewManager(context.Background(), nil)
	m.Register(recorder{mu: &mu, order: &order, name: "memory"})
	m.Register(recorder{mu: &mu, order: &order, name: "detector"})

	m.Shutdown()
	m.Shutdown()

	assert.Equal(t, []string{"detector", "memory"}, order)
	assert.ErrorIs(t, m.Context().Err(), context.Canceled)

	select {
	case <-m.Done():
	default:
		t.Fatal("Done should be closed after Shutdown")
	}
}

func TestShutdownTimesOutSlowComponent(t *testing.T) {
	var mu sync.Mutex
	var order []string

	m := NewManager(context.Background(), nil)
	m.timeout = 10 * time.Millisecond
	m.Register(recorder{mu: &mu, order: &order, name: "slow", delay: time.Second})

	start := time.Now()
	m.Shutdown()
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	m := NewManager(parent, nil)
	m.Listen()
	defer m.Shutdown()

	cancel()
	assert.ErrorIs(t, m.Context().Err(), context.Canceled)
}
