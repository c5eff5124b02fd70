package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
)

const testTimeout = 5 * time.Second

type fakeManager struct {
	mu        sync.Mutex
	frames    []Frame
	closes    int
	updateErr error
	closeErr  error
}

func (m *fakeManager) Update(db scene.Database, sceneID, cameraID scene.ObjectKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.frames = append(m.frames, Frame{Database: db, Scene: sceneID, Camera: cameraID})
	return nil
}

func (m *fakeManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return m.closeErr
}

func (m *fakeManager) Stats() renderer.Stats {
	return renderer.Stats{}
}

func (m *fakeManager) snapshot() ([]Frame, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Frame(nil), m.frames...), m.closes
}

type fakeWindow struct {
	mu        sync.Mutex
	onUpdate  func()
	requested atomic.Bool
}

func (w *fakeWindow) SetUpdateCallback(cb func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onUpdate = cb
}
func (w *fakeWindow) SetResizeCallback(func(width, height int))  {}
func (w *fakeWindow) SetKeyDownCallback(func(keyCode uint32))    {}
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (w *fakeWindow) IsRunning() bool                            { return !w.requested.Load() }
func (w *fakeWindow) RequestClose()                              { w.requested.Store(true) }
func (w *fakeWindow) Close() error                               { return nil }
func (w *fakeWindow) Width() int                                 { return 640 }
func (w *fakeWindow) Height() int                                { return 480 }

func (w *fakeWindow) ProcessMessages() {
	for w.IsRunning() {
		w.mu.Lock()
		cb := w.onUpdate
		w.mu.Unlock()
		if cb != nil {
			cb()
		}
		time.Sleep(time.Millisecond)
	}
}

// runEngine runs e and fails the test if Run does not return in time.
func runEngine(t *testing.T, e Engine) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- e.Run() }()
	select {
	case err := <-done:
		return err
	case <-time.After(testTimeout):
		t.Fatal("Run() did not return")
		return nil
	}
}

func TestRunHeadlessFeedsManager(t *testing.T) {
	m := &fakeManager{}
	db := scene.NewDatabase()
	var e Engine
	e = NewEngine(m, WithTickRate(1000), WithTickCallback(func(dt float32) (Frame, bool) {
		if dt <= 0 {
			t.Errorf("tick delta = %v, want > 0", dt)
		}
		if e.Ticks() >= 5 {
			e.Quit()
		}
		return Frame{Database: db.Clone(), Scene: 1, Camera: 2}, true
	}))

	if err := runEngine(t, e); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	frames, closes := m.snapshot()
	if closes != 1 {
		t.Errorf("manager closed %d times, want 1", closes)
	}
	if len(frames) < 5 {
		t.Fatalf("manager got %d updates, want at least 5", len(frames))
	}
	for i, f := range frames {
		if f.Scene != 1 || f.Camera != 2 || f.Database == nil {
			t.Fatalf("update %d = %+v, want scene 1 camera 2", i, f)
		}
	}
}

func TestSkippedTicksDoNotUpdate(t *testing.T) {
	m := &fakeManager{}
	var e Engine
	e = NewEngine(m, WithTickRate(1000), WithTickCallback(func(float32) (Frame, bool) {
		if e.Ticks() >= 3 {
			e.Quit()
		}
		return Frame{}, false
	}))

	if err := runEngine(t, e); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if frames, _ := m.snapshot(); len(frames) != 0 {
		t.Fatalf("manager got %d updates, want 0", len(frames))
	}
}

func TestEngineStops(t *testing.T) {
	closeErr := errors.New("coordinator failed")

	specs := []struct {
		name     string
		manager  *fakeManager
		callback TickFunc
		wantErr  error
	}{
		{
			name:    "update error",
			manager: &fakeManager{updateErr: renderer.ErrCoordinatorTerminated, closeErr: closeErr},
			callback: func(float32) (Frame, bool) {
				return Frame{Database: scene.NewDatabase()}, true
			},
			wantErr: closeErr,
		},
		{
			name:    "panicking tick",
			manager: &fakeManager{},
			callback: func(float32) (Frame, bool) {
				panic("boom")
			},
		},
	}
	for _, spec := range specs {
		e := NewEngine(spec.manager, WithTickRate(1000), WithTickCallback(spec.callback))
		err := runEngine(t, e)
		if !errors.Is(err, spec.wantErr) {
			t.Errorf("[%s] Run() error = %v, want %v", spec.name, err, spec.wantErr)
		}
		if _, closes := spec.manager.snapshot(); closes != 1 {
			t.Errorf("[%s] manager closed %d times, want 1", spec.name, closes)
		}
	}
}

func TestQuitEndsWindowLoop(t *testing.T) {
	m := &fakeManager{}
	win := &fakeWindow{}
	var e Engine
	e = NewEngine(m, WithWindow(win), WithTickRate(500), WithTickCallback(func(float32) (Frame, bool) {
		if e.Ticks() == 2 {
			go e.Quit()
		}
		return Frame{}, false
	}))

	if err := runEngine(t, e); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !win.requested.Load() {
		t.Fatal("window was not asked to close")
	}
	if _, closes := m.snapshot(); closes != 1 {
		t.Fatalf("manager closed %d times, want 1", closes)
	}
}

func TestWindowCloseStopsEngine(t *testing.T) {
	m := &fakeManager{}
	win := &fakeWindow{}
	e := NewEngine(m, WithWindow(win), WithTickRate(500))

	go func() {
		time.Sleep(20 * time.Millisecond)
		win.RequestClose()
	}()
	if err := runEngine(t, e); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, closes := m.snapshot(); closes != 1 {
		t.Fatalf("manager closed %d times, want 1", closes)
	}
}

func TestSetTickRate(t *testing.T) {
	e := NewEngine(&fakeManager{}).(*engine)

	specs := []struct {
		fps  float64
		want time.Duration
	}{
		{120, time.Second / 120},
		{0, time.Second / 60},
		{-5, time.Second / 60},
	}
	for _, spec := range specs {
		e.SetTickRate(spec.fps)
		if e.engineTickRate != spec.want {
			t.Errorf("SetTickRate(%v) interval = %v, want %v", spec.fps, e.engineTickRate, spec.want)
		}
	}
}

func TestNewEngineRequiresManager(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewEngine(nil) did not panic")
		}
	}()
	NewEngine(nil)
}
