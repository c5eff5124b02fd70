package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/drawlist"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

// poolWatch records the largest in-flight count and any conservation failure
// seen by a step hook.
type poolWatch struct {
	mu          sync.Mutex
	maxInFlight int
	broken      []string
}

func (w *poolWatch) hook(s Stats) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.maxInFlight = max(w.maxInFlight, s.InFlight)
	if s.Free+s.InFlight != s.PoolSize {
		w.broken = append(w.broken, fmt.Sprintf("%+v", s))
	}
}

func TestManagerRendersWithOneWorker(t *testing.T) {
	db, root, cam := newTestScene(t, "scene", 4)
	surface := &fakeSurface{}
	pipe := &fakePipeline{}
	watch := &poolWatch{}

	m := NewManager(db.Clone(), surface, pipe, WithWorkers(1), WithDrawlists(2), WithStepHook(watch.hook))
	if err := m.Update(db.Clone(), root, cam); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	waitFor(t, "three frames", func() bool { return m.Stats().Frames >= 3 })

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s := m.Stats()
	if s.State != StateTerminated || s.Free != 2 || s.InFlight != 0 || s.Workers != 0 {
		t.Fatalf("stats after Close = %+v", s)
	}
	_, renders := pipe.calls()
	if int64(len(renders)) != surface.swaps.Load() || uint64(len(renders)) != s.Frames {
		t.Fatalf("renders %d, swaps %d, frames %d disagree", len(renders), surface.swaps.Load(), s.Frames)
	}
	for _, r := range renders {
		if r.commands != 4 {
			t.Fatalf("render of drawlist %d had %d commands, want 4", r.drawlist, r.commands)
		}
	}

	watch.mu.Lock()
	defer watch.mu.Unlock()
	if watch.maxInFlight > 1 {
		t.Errorf("max in flight = %d with one worker", watch.maxInFlight)
	}
	if len(watch.broken) > 0 {
		t.Errorf("pool not conserved: %v", watch.broken)
	}
}

func TestManagerManyWorkersShareThePool(t *testing.T) {
	db, root, cam := newTestScene(t, "scene", 8)
	watch := &poolWatch{}
	m := NewManager(db.Clone(), &fakeSurface{}, &fakePipeline{}, WithWorkers(4), WithDrawlists(2), WithStepHook(watch.hook))

	for i := 0; i < 5; i++ {
		if err := m.Update(db.Clone(), root, cam); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}
	waitFor(t, "ten frames", func() bool { return m.Stats().Frames >= 10 })
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if s := m.Stats(); s.Free != 2 || s.Updates != 5 {
		t.Fatalf("stats after Close = %+v, want 2 free and 5 updates", s)
	}

	watch.mu.Lock()
	defer watch.mu.Unlock()
	if watch.maxInFlight > 2 {
		t.Errorf("max in flight = %d exceeds the pool", watch.maxInFlight)
	}
	if len(watch.broken) > 0 {
		t.Errorf("pool not conserved: %v", watch.broken)
	}
}

func TestManagerZeroWorkers(t *testing.T) {
	db, root, cam := newTestScene(t, "scene", 1)
	pipe := &fakePipeline{}
	m := NewManager(db.Clone(), &fakeSurface{}, pipe, WithWorkers(0))

	if err := m.Update(db.Clone(), root, cam); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := m.Update(db.Clone(), root, cam); !errors.Is(err, ErrCoordinatorTerminated) {
		t.Fatalf("Update() after Close error = %v, want ErrCoordinatorTerminated", err)
	}
	if _, renders := pipe.calls(); len(renders) != 0 {
		t.Fatalf("renders = %d with no workers", len(renders))
	}
}

func TestManagerKeepsRenderingAfterRenderErrors(t *testing.T) {
	db, root, cam := newTestScene(t, "scene", 2)
	surface := &fakeSurface{}
	pipe := &fakePipeline{renderErr: errors.New("device lost")}
	m := NewManager(db.Clone(), surface, pipe, WithWorkers(2))

	if err := m.Update(db.Clone(), root, cam); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	waitFor(t, "frames after render errors", func() bool { return surface.swaps.Load() >= 3 })
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if s := m.Stats(); s.Free != s.PoolSize {
		t.Fatalf("stats after Close = %+v, want every drawlist free", s)
	}
}

func TestNewManagerRequiresCollaborators(t *testing.T) {
	db := scene.NewDatabase()
	specs := []struct {
		name string
		call func()
	}{
		{"nil database", func() { NewManager(nil, &fakeSurface{}, &fakePipeline{}) }},
		{"nil surface", func() { NewManager(db, nil, &fakePipeline{}) }},
		{"nil pipeline", func() { NewManager(db, &fakeSurface{}, nil) }},
	}
	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("NewManager did not panic")
				}
			}()
			spec.call()
		})
	}
}

func TestManagerRejectsNilDatabase(t *testing.T) {
	db, root, cam := newTestScene(t, "scene", 2)
	surface := &fakeSurface{}
	m := NewManager(db.Clone(), surface, &fakePipeline{}, WithWorkers(2))

	if err := m.Update(nil, root, cam); !errors.Is(err, ErrNilDatabase) {
		t.Fatalf("Update(nil) error = %v, want ErrNilDatabase", err)
	}
	if err := m.Update(db.Clone(), root, cam); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	waitFor(t, "a frame after the rejected update", func() bool { return surface.swaps.Load() >= 1 })
	if err := closeWithin(t, m); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestManagerCloseAfterPanic(t *testing.T) {
	specs := []struct {
		name    string
		failOn  string
		wantErr string
	}{
		{name: "coordinator panics binding a drawlist", failOn: "Clone", wantErr: "clone failed"},
		{name: "worker panics preparing a drawlist", failOn: "Walk"},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			db, root, cam := newTestScene(t, "scene", 4)
			m := NewManager(db.Clone(), &fakeSurface{}, &fakePipeline{}, WithWorkers(3), WithDrawlists(2))
			if err := m.Update(&failingDB{DB: db.Clone().(*scene.DB), failOn: spec.failOn}, root, cam); err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			waitFor(t, "coordinator exit", func() bool { return m.Stats().State == StateTerminated })

			err := closeWithin(t, m)
			switch {
			case spec.wantErr == "" && err != nil:
				t.Fatalf("Close() error = %v, want nil", err)
			case spec.wantErr != "" && (err == nil || !strings.Contains(err.Error(), spec.wantErr)):
				t.Fatalf("Close() error = %v, want one containing %q", err, spec.wantErr)
			}
			if s := m.Stats(); s.Waiting != 0 || s.Free+s.InFlight != s.PoolSize {
				t.Fatalf("stats after Close = %+v", s)
			}
			if err := m.Update(db.Clone(), root, cam); !errors.Is(err, ErrCoordinatorTerminated) {
				t.Fatalf("Update() after Close error = %v, want ErrCoordinatorTerminated", err)
			}
		})
	}
}

func TestManagerCloseStopsPrepareWorkers(t *testing.T) {
	db, root, cam := newTestScene(t, "scene", 64)
	before := runtime.NumGoroutine()

	m := NewManager(db.Clone(), &fakeSurface{}, &fakePipeline{},
		WithWorkers(2),
		WithDrawlists(3),
		WithDrawlistOptions(drawlist.WithChunkSize(2), drawlist.WithPrepareWorkers(4)),
	)
	if err := m.Update(db.Clone(), root, cam); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	waitFor(t, "six frames", func() bool { return m.Stats().Frames >= 6 })
	if err := closeWithin(t, m); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	deadline := time.Now().Add(testTimeout)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			buf := make([]byte, 1<<16)
			t.Fatalf("goroutines after Close = %d, want %d\n%s", runtime.NumGoroutine(), before, buf[:runtime.Stack(buf, true)])
		}
		time.Sleep(time.Millisecond)
	}
}
