package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
	"github.com/Carmen-Shannon/oxy-render/log"
)

// Frame is the scene state a tick hands to the renderer.
type Frame struct {
	// Database is a snapshot the engine gives up ownership of.
	Database scene.Database

	// Scene is the root object to draw.
	Scene scene.ObjectKey

	// Camera is the object whose world transform is the camera.
	Camera scene.ObjectKey
}

// TickFunc advances the simulation by deltaTime seconds. Returning false
// skips the render update for that tick.
type TickFunc func(deltaTime float32) (Frame, bool)

// engine implements the Engine interface.
// Coordinates the tick goroutine, the render manager and the window loop.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window  window.Window
	manager renderer.Manager

	engineTickRate time.Duration
	tickCallback   TickFunc
	ticks          atomic.Uint64

	logger log.Logger
}

// Engine is the main entry point for the engine.
// It feeds scene snapshots from a fixed-rate tick into the render manager.
type Engine interface {
	// Window returns the window driving the message loop, or nil when headless.
	Window() window.Window

	// Manager returns the render manager receiving the tick's frames.
	Manager() renderer.Manager

	// SetTickRate sets the engine tick rate in frames per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Must be called before Run.
	//
	// Parameters:
	//   - callback: function producing the frame to render
	SetTickCallback(callback TickFunc)

	// Ticks returns the number of ticks run so far.
	Ticks() uint64

	// Run starts the tick goroutine and blocks until the window closes or Quit
	// is called. The render manager is closed before Run returns.
	//
	// Returns:
	//   - error: the error reported by closing the render manager
	Run() error

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times and from any goroutine.
	Quit()
}

// NewEngine creates a new Engine instance rendering through manager.
// Without WithWindow the engine runs headless until Quit.
//
// Parameters:
//   - manager: the render manager receiving frames
//   - options: functional options for engine configuration (window, tick rate)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(manager renderer.Manager, options ...EngineBuilderOption) Engine {
	if manager == nil {
		panic("engine: NewEngine requires a non-nil Manager")
	}
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		manager:         manager,
		engineTickRate:  time.Second / 60,
		logger:          log.New("engine"),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Manager() renderer.Manager {
	return e.manager
}

func (e *engine) Ticks() uint64 {
	return e.ticks.Load()
}

func (e *engine) Run() error {
	e.running.Store(true)
	e.wg.Add(1)
	go e.handleEngine()

	if e.window != nil {
		// The message loop owns the window; Quit reaches it through the update callback.
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.quitChannel:
				e.window.RequestClose()
			default:
			}
		})
		e.window.ProcessMessages()
		e.signalQuit()
	} else {
		<-e.quitChannel
	}

	e.wg.Wait()
	e.running.Store(false)

	err := e.manager.Close()
	if err != nil {
		e.logger.Errorf("render manager closed with error: %v", err)
	}
	e.logger.Infof("engine stopped after %d ticks", e.ticks.Load())
	return err
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Each tick's frame is handed to the render manager. A failed update or a
// panicking tick callback stops the engine.
func (e *engine) handleEngine() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorf("tick goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			e.ticks.Add(1)

			if e.tickCallback == nil {
				continue
			}
			frame, ok := e.tickCallback(dt)
			if !ok {
				continue
			}
			if err := e.manager.Update(frame.Database, frame.Scene, frame.Camera); err != nil {
				e.logger.Errorf("render update failed: %v", err)
				e.signalQuit()
				return
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	newRate := tickInterval(fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}

	// Replace any pending update that the loop has not picked up yet.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback TickFunc) {
	e.tickCallback = callback
}

func tickInterval(fps float64) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / fps)
}
