package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// SweepFunc finds work the queue lost track of and enqueues it again.
type SweepFunc func(ctx context.Context, q *Queue) error

// Manager runs the queue workers and the periodic ledger sweep.
type Manager struct {
	queue         *Queue
	sweep         SweepFunc
	sweepInterval time.Duration
	sweepTicker   *time.Ticker
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
}

func NewManager(queue *Queue, sweepInterval time.Duration, sweep SweepFunc) *Manager {
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	return &Manager{
		queue:         queue,
		sweep:         sweep,
		sweepInterval: sweepInterval,
		stopCh:        make(chan struct{}),
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	if m.sweep != nil {
		m.sweepTicker = time.NewTicker(m.sweepInterval)
		m.wg.Add(1)
		go m.sweepWorker(m.stopCh, m.sweepTicker.C)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

func (m *Manager) sweepWorker(stopCh <-chan struct{}, tick <-chan time.Time) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started ledger sweep (interval: %s)", m.sweepInterval)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Ledger sweep stopping")
			return
		case <-tick:
			if err := m.SweepOnce(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Ledger sweep error: %v", err)
			}
		}
	}
}

// SweepOnce runs the sweep immediately.
func (m *Manager) SweepOnce(ctx context.Context) error {
	if m.sweep == nil {
		return nil
	}
	return m.sweep(ctx, m.queue)
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
