package memory

import (
	"sync"

	"globule-detector/internal/opencv/safe"
)

// Pool keeps released scratch Mats of a single shape for reuse.
type Pool struct {
	key      PoolKey
	free     []*safe.Mat
	capacity int
	mu       sync.Mutex
}

func NewPool(key PoolKey, capacity int) *Pool {
	return &Pool{
		key:      key,
		free:     make([]*safe.Mat, 0, capacity),
		capacity: capacity,
	}
}

// Get pops the most recently released Mat, or returns nil when none is usable.
func (p *Pool) Get() *safe.Mat {
	p.mu.Lock()
	defer p.mu.Unlock()

	for n := len(p.free); n > 0; n = len(p.free) {
		mat := p.free[n-1]
		p.free = p.free[:n-1]

		if p.fits(mat) {
			return mat
		}
		mat.Close()
	}
	return nil
}

// Put stores mat unless the pool is full or mat does not match the pool shape.
func (p *Pool) Put(mat *safe.Mat) bool {
	if mat == nil || !p.fits(mat) {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) >= p.capacity {
		return false
	}
	p.free = append(p.free, mat)
	return true
}

func (p *Pool) fits(mat *safe.Mat) bool {
	if !mat.IsValid() || mat.Empty() {
		return false
	}
	return mat.Rows() == p.key.Rows && mat.Cols() == p.key.Cols && mat.Type() == p.key.MatType
}

func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Cleanup closes every pooled Mat and reports how many were closed.
func (p *Pool) Cleanup() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	closed := len(p.free)
	for _, mat := range p.free {
		mat.Close()
	}
	p.free = p.free[:0]
	return closed
}
