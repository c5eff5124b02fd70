package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/drawlist"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
	"github.com/Carmen-Shannon/oxy-render/log"
)

// Manager is the client handle of the render engine. It owns a coordinator
// goroutine bound to the graphics context and a pool of worker goroutines.
type Manager interface {
	// Update hands a new scene database to the coordinator and selects the
	// scene and camera to draw. It never blocks. The database must not be
	// mutated afterwards; pass a Clone of a database you keep editing.
	//
	// Parameters:
	//   - db: the scene snapshot
	//   - sceneID: the scene root to draw, or scene.NoObject to stop drawing
	//   - cameraID: the object whose world transform is the camera
	//
	// Returns:
	//   - error: ErrNilDatabase if db is nil, ErrCoordinatorTerminated if the coordinator has exited
	Update(db scene.Database, sceneID, cameraID scene.ObjectKey) error

	// Close stops all workers and the coordinator and waits for them. In-flight
	// drawlists are discarded unrendered and every drawlist's preparation pool
	// is stopped. Safe to call multiple times.
	//
	// Returns:
	//   - error: the coordinator's exit error, such as a wrapped ErrProtocolViolation
	Close() error

	// Stats returns the most recent coordinator statistics. Safe from any goroutine.
	Stats() Stats
}

type manager struct {
	settings    settings
	queue       *commandQueue
	coordinator *coordinator
	workers     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

var _ Manager = &manager{}

// NewManager starts the coordinator and the workers.
//
// Parameters:
//   - db: the initial scene database
//   - surface: the display owned by the coordinator
//   - p: the pipeline that loads and renders prepared drawlists
//   - options: functional options to configure pool sizes and collaborators
//
// Returns:
//   - Manager: the running manager
func NewManager(db scene.Database, surface window.Surface, p pipeline.Pipeline, options ...ManagerBuilderOption) Manager {
	if db == nil {
		panic("renderer: NewManager requires a non-nil scene database")
	}
	if surface == nil {
		panic("renderer: NewManager requires a non-nil surface")
	}
	if p == nil {
		panic("renderer: NewManager requires a non-nil pipeline")
	}

	m := &manager{
		settings: defaultSettings(),
		queue:    newCommandQueue(),
	}
	for _, opt := range options {
		opt(m)
	}

	m.coordinator = newCoordinator(m.queue, db, surface, p, m.settings)
	go m.coordinator.run()

	logger := log.New("render-worker")
	for i := 1; i <= m.settings.workers; i++ {
		w := newWorker(drawlist.Holder(i), m.queue, logger)
		m.workers.Add(1)
		go func() {
			defer m.workers.Done()
			w.run()
		}()
	}
	return m
}

func (m *manager) Update(db scene.Database, sceneID, cameraID scene.ObjectKey) error {
	if db == nil {
		return ErrNilDatabase
	}
	select {
	case <-m.coordinator.done:
		return ErrCoordinatorTerminated
	default:
	}
	if err := m.queue.send(updateCommand{db: db, sceneID: sceneID, cameraID: cameraID}); err != nil {
		return ErrCoordinatorTerminated
	}
	return nil
}

func (m *manager) Close() error {
	m.closeOnce.Do(func() {
		ack := make(chan struct{}, 1)
		if err := m.queue.send(finishCommand{ack: ack}); err == nil {
			select {
			case <-ack:
			case <-m.coordinator.done:
			}
		}
		<-m.coordinator.done
		m.workers.Wait()
		m.closeErr = m.coordinator.err
	})
	return m.closeErr
}

func (m *manager) Stats() Stats {
	return *m.coordinator.stats.Load()
}
