package renderer

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/compute"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/config"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/drawlist"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

const testTimeout = 5 * time.Second

type fakeSurface struct {
	current atomic.Bool
	swaps   atomic.Int64
}

func (s *fakeSurface) MakeContextCurrent()        { s.current.Store(true) }
func (s *fakeSurface) SwapBuffers()               { s.swaps.Add(1) }
func (s *fakeSurface) Size() (int, int)           { return 320, 240 }
func (s *fakeSurface) ContextVersion() (int, int) { return 4, 5 }

type renderCall struct {
	drawlist  int
	sceneName string
	commands  int
}

type fakePipeline struct {
	mu        sync.Mutex
	loads     int
	renders   []renderCall
	renderErr error
}

func (p *fakePipeline) Load(scene.Database, config.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads++
	return nil
}

func (p *fakePipeline) Render(dl drawlist.Drawlist, db scene.Database, _ camera.Matrices, _ pipeline.DrawTarget) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renders = append(p.renders, renderCall{
		drawlist:  dl.ID(),
		sceneName: db.Name(dl.Scene()),
		commands:  len(dl.Commands()),
	})
	return p.renderErr
}

func (p *fakePipeline) calls() (loads int, renders []renderCall) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads, append([]renderCall(nil), p.renders...)
}

type fakeProvider struct {
	res   *compute.Resource
	err   error
	calls atomic.Int32
}

func (p *fakeProvider) Acquire() (*compute.Resource, error) {
	p.calls.Add(1)
	return p.res, p.err
}

// newTestScene builds a database whose root is named name, with a camera at
// z=10 and n triangles in front of it.
func newTestScene(t *testing.T, name string, n int) (*scene.DB, scene.ObjectKey, scene.ObjectKey) {
	t.Helper()
	db := scene.NewDatabase()
	root := db.NewObject(scene.NoObject, name)
	geom, err := db.AddGeometry(root, "triangle", scene.Geometry{
		Vertices: []float32{0, 1, 0, 0, 0, 1, -1, -1, 0, 0, 0, 1, 1, -1, 0, 0, 0, 1},
		Indices:  []uint32{0, 1, 2},
	})
	if err != nil {
		t.Fatalf("AddGeometry() error = %v", err)
	}
	cam := db.NewObject(root, "camera")
	db.SetLocation(cam, scene.NewLocation([3]float32{0, 0, 10}))
	for i := 0; i < n; i++ {
		k := db.NewObject(root, "triangle")
		db.SetLocation(k, scene.NewLocation([3]float32{float32(i), 0, 0}))
		db.SetDrawable(k, scene.Drawable{Geometry: geom})
	}
	return db, root, cam
}

// newTestCoordinator creates a coordinator that is not yet running, so tests
// can queue commands before it starts.
func newTestCoordinator(t *testing.T, workers, poolSize int, opts ...func(*settings)) (*commandQueue, *coordinator, *fakeSurface, *fakePipeline) {
	t.Helper()
	s := defaultSettings()
	s.workers = workers
	s.poolSize = poolSize
	for _, opt := range opts {
		opt(&s)
	}
	q := newCommandQueue()
	surface := &fakeSurface{}
	pipe := &fakePipeline{}
	c := newCoordinator(q, scene.NewDatabase(), surface, pipe, s)
	t.Cleanup(func() {
		q.close()
		select {
		case <-c.done:
		case <-time.After(testTimeout):
			t.Errorf("coordinator did not exit")
		}
	})
	return q, c, surface, pipe
}

func mustSend(t *testing.T, q *commandQueue, cmd command) {
	t.Helper()
	if err := q.send(cmd); err != nil {
		t.Fatalf("send(%T) error = %v", cmd, err)
	}
}

func receive[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func waitDone(t *testing.T, c *coordinator) {
	t.Helper()
	receive[struct{}](t, c.done, "coordinator exit")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// completeAs plays the worker side of a hand-off: prepare, give back, report.
func completeAs(t *testing.T, q *commandQueue, worker drawlist.Holder, dl drawlist.Drawlist) {
	t.Helper()
	if err := dl.PrepareAsync(); err != nil && !errors.Is(err, drawlist.ErrCameraNotFound) {
		t.Fatalf("PrepareAsync() error = %v", err)
	}
	if err := dl.Transfer(worker, drawlist.HolderCoordinator); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	mustSend(t, q, completeCommand{worker: worker, dl: dl})
}

// failingDB wraps a database and panics in the method named by failOn. Clones
// keep failing the same way.
type failingDB struct {
	*scene.DB
	failOn string
}

func (d *failingDB) Clone() scene.Database {
	if d.failOn == "Clone" {
		panic("clone failed")
	}
	return &failingDB{DB: d.DB.Clone().(*scene.DB), failOn: d.failOn}
}

func (d *failingDB) Walk(sceneID scene.ObjectKey, viewProj [16]float32) []scene.ObjectKey {
	if d.failOn == "Walk" {
		panic("walk failed")
	}
	return d.DB.Walk(sceneID, viewProj)
}

// closeWithin calls m.Close and fails the test if it does not return in time.
func closeWithin(t *testing.T, m Manager) error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- m.Close() }()
	return receive[error](t, errc, "Close to return")
}
