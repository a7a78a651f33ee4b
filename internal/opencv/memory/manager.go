package memory

import (
	"fmt"
	"sync"

	"globule-detector/internal/logger"
	"globule-detector/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const component = "MemoryManager"

// Manager hands out zeroed scratch Mats and recycles them per shape.
// It is safe for concurrent use by independent tiles.
type Manager struct {
	pools       map[PoolKey]*Pool
	allocations map[uint64]int64
	mu          sync.Mutex
	stats       Stats
	poolSize    int
	logger      logger.Logger
}

type PoolKey struct {
	Rows    int
	Cols    int
	MatType gocv.MatType
}

type Stats struct {
	TotalAllocated int64
	TotalReleased  int64
	ActiveMats     int64
	PoolHits       int64
	PoolMisses     int64
	MaxAllowed     int64
}

func NewManager(log logger.Logger) *Manager {
	return &Manager{
		pools:       make(map[PoolKey]*Pool),
		allocations: make(map[uint64]int64),
		stats: Stats{
			MaxAllowed: 2 * 1024 * 1024 * 1024,
		},
		poolSize: 5,
		logger:   logger.OrNoOp(log),
	}
}

// GetMat returns a zero-filled Mat that must be handed back with ReleaseMat.
func (m *Manager) GetMat(rows, cols int, matType gocv.MatType) (*safe.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := int64(rows * cols * matTypeSize(matType))
	if m.stats.TotalAllocated-m.stats.TotalReleased+size > m.stats.MaxAllowed {
		return nil, fmt.Errorf("memory limit exceeded: %d bytes in use, %d requested",
			m.stats.TotalAllocated-m.stats.TotalReleased, size)
	}

	key := PoolKey{Rows: rows, Cols: cols, MatType: matType}

	var mat *safe.Mat
	if pool, exists := m.pools[key]; exists {
		mat = pool.Get()
	}

	if mat != nil {
		if err := mat.Zero(); err != nil {
			mat.Close()
			mat = nil
		} else {
			m.stats.PoolHits++
		}
	}

	if mat == nil {
		m.stats.PoolMisses++
		created, err := safe.NewTaggedMat(rows, cols, matType, "scratch")
		if err != nil {
			return nil, fmt.Errorf("scratch Mat allocation failed: %w", err)
		}
		mat = created
	}

	m.allocations[mat.ID()] = size
	m.stats.TotalAllocated += size
	m.stats.ActiveMats++

	return mat, nil
}

// ReleaseMat returns mat to its pool, or closes it when the pool is full.
// Releasing nil or an untracked Mat is tolerated.
func (m *Manager) ReleaseMat(mat *safe.Mat) {
	if mat == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	size, exists := m.allocations[mat.ID()]
	if !exists {
		m.logger.Warning(component, "releasing untracked Mat", map[string]interface{}{
			"mat_id": mat.ID(),
			"tag":    mat.Tag(),
		})
		mat.Close()
		return
	}

	delete(m.allocations, mat.ID())
	m.stats.TotalReleased += size
	m.stats.ActiveMats--

	if !mat.IsValid() {
		return
	}

	key := PoolKey{Rows: mat.Rows(), Cols: mat.Cols(), MatType: mat.Type()}
	pool, exists := m.pools[key]
	if !exists {
		pool = NewPool(key, m.poolSize)
		m.pools[key] = pool
	}

	if !pool.Put(mat) {
		mat.Close()
	}
}

func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Cleanup closes pooled Mats and stops tracking outstanding ones. Outstanding
// Mats stay open; whoever holds them still closes them.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	matCount := 0
	for key, pool := range m.pools {
		matCount += pool.Cleanup()
		delete(m.pools, key)
	}

	leaked := len(m.allocations)
	for id, size := range m.allocations {
		m.stats.TotalReleased += size
		m.stats.ActiveMats--
		delete(m.allocations, id)
	}

	m.logger.Debug(component, "cleanup complete", map[string]interface{}{
		"pooled_closed": matCount,
		"leaked":        leaked,
	})
}

func matTypeSize(matType gocv.MatType) int {
	switch matType {
	case gocv.MatTypeCV8UC1:
		return 1
	case gocv.MatTypeCV8UC3:
		return 3
	case gocv.MatTypeCV8UC4:
		return 4
	case gocv.MatTypeCV32SC1, gocv.MatTypeCV32FC1:
		return 4
	case gocv.MatTypeCV32FC3:
		return 12
	default:
		return 1
	}
}

// Shutdown releases pooled Mats when the process stops.
func (m *Manager) Shutdown() {
	m.Cleanup()
}
