package renderer

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/compute"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/config"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/drawlist"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
	"github.com/Carmen-Shannon/oxy-render/log"
)

// settings holds the tunables shared by the manager and its coordinator.
type settings struct {
	workers         int
	poolSize        int
	provider        compute.Provider
	timer           *profiler.FrameTimer
	onStep          func(Stats)
	drawlistOptions []drawlist.DrawlistBuilderOption
}

func defaultSettings() settings {
	return settings{
		workers:  1,
		poolSize: 2,
	}
}

// coordinator is the only goroutine that touches the graphics context. It owns
// the drawlist pool, pairs idle workers with free drawlists and submits
// completed ones.
type coordinator struct {
	queue    *commandQueue
	surface  window.Surface
	pipeline pipeline.Pipeline
	settings settings
	timer    *profiler.FrameTimer
	logger   log.Logger

	cfg   config.Config
	gl    glState
	state CoordinatorState

	resource      *compute.Resource
	resourceTaken bool

	free     []drawlist.Drawlist
	inflight map[drawlist.Holder]drawlist.Drawlist
	waiting  []waitingCommand
	workers  int
	acks     []chan<- struct{}
	updates  uint64

	stats atomic.Pointer[Stats]

	// done is closed when run returns; err is valid after that.
	done chan struct{}
	err  error
}

func newCoordinator(q *commandQueue, db scene.Database, surface window.Surface, p pipeline.Pipeline, s settings) *coordinator {
	c := &coordinator{
		queue:    q,
		surface:  surface,
		pipeline: p,
		settings: s,
		timer:    s.timer,
		logger:   log.New("render"),
		gl:       newGLState(db),
		state:    StateAwaitingResourceSetup,
		inflight: make(map[drawlist.Holder]drawlist.Drawlist),
		workers:  s.workers,
		done:     make(chan struct{}),
	}
	if c.timer == nil {
		c.timer = profiler.NewFrameTimer()
	}
	c.stats.Store(&Stats{
		State:    c.state,
		PoolSize: s.poolSize,
		Free:     s.poolSize,
		Workers:  s.workers,
	})
	return c
}

// run is the coordinator goroutine. It returns once the coordinator terminates.
func (c *coordinator) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(c.done)
	// Recover from panics so a broken invariant ends the coordinator instead of the process.
	defer func() {
		if r := recover(); r != nil {
			c.err = fmt.Errorf("renderer: coordinator panic: %v", r)
			c.logger.Errorf("%v", c.err)
		}
		c.shutdown()
	}()

	c.start()

	for c.state != StateTerminated {
		var err error
		if c.canDispatch() {
			cmd, res := c.queue.tryRecv()
			switch res {
			case pollEmpty:
				err = c.dispatch()
			case pollClosed:
				c.disconnect()
				return
			default:
				err = c.handle(cmd)
			}
		} else {
			cmd, ok := c.queue.recv()
			if !ok {
				c.disconnect()
				return
			}
			err = c.handle(cmd)
		}

		if err != nil {
			c.err = err
			c.logger.Errorf("%v", err)
			return
		}
		c.step()
	}
}

// start binds the graphics context and builds the drawlist pool.
func (c *coordinator) start() {
	c.surface.MakeContextCurrent()
	c.cfg = config.New(c.surface.ContextVersion())
	c.logger.Infof("context ready, bindless %s, %d drawlist(s), %d worker(s)", c.cfg.Bindless, c.settings.poolSize, c.workers)

	if c.settings.provider != nil {
		res, err := c.settings.provider.Acquire()
		if err != nil {
			c.logger.Warningf("compute resource unavailable: %v", err)
		} else {
			c.resource = res
		}
	}

	for i := range c.settings.poolSize {
		options := append([]drawlist.DrawlistBuilderOption{drawlist.WithID(i)}, c.settings.drawlistOptions...)
		c.free = append(c.free, drawlist.FromConfig(c.cfg, nil, options...))
	}

	if c.gl.current != nil {
		c.load()
	}
	c.step()
}

func (c *coordinator) canDispatch() bool {
	return len(c.free) > 0 && len(c.waiting) > 0 && c.gl.sceneID != scene.NoObject && c.gl.current != nil
}

// dispatch binds a free drawlist to a clone of the current database and hands
// it to the longest waiting worker. The worker and the drawlist stay queued
// until the reply is sent, so an error or panic leaves the worker to be
// stopped by shutdown.
func (c *coordinator) dispatch() error {
	w := c.waiting[0]
	dl := c.free[len(c.free)-1]

	dl.SetViewport(c.surface.Size())
	if err := dl.Bind(c.gl.current.Clone(), c.gl.sceneID, c.gl.cameraID); err != nil {
		return fmt.Errorf("%w: free drawlist %d could not be bound: %v", ErrProtocolViolation, dl.ID(), err)
	}
	if err := dl.Transfer(drawlist.HolderCoordinator, w.worker); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}

	c.waiting = c.waiting[1:]
	c.free = c.free[:len(c.free)-1]
	c.inflight[w.worker] = dl
	c.logger.Debugf("drawlist %d -> worker %d", dl.ID(), w.worker)
	w.reply <- dl
	return nil
}

func (c *coordinator) handle(cmd command) error {
	switch cmd := cmd.(type) {
	case updateCommand:
		c.update(cmd)
	case waitingCommand:
		if dl, busy := c.inflight[cmd.worker]; busy {
			cmd.reply <- nil
			return fmt.Errorf("%w: worker %d ready while holding drawlist %d", ErrProtocolViolation, cmd.worker, dl.ID())
		}
		c.waiting = append(c.waiting, cmd)
	case completeCommand:
		dl, err := c.reclaim(cmd)
		if err != nil {
			return err
		}
		c.submit(dl)
		c.free = append(c.free, dl)
	case setupCommand:
		c.setup(cmd)
		if c.state == StateAwaitingResourceSetup {
			c.state = StateRunning
		}
	case finishCommand:
		c.acks = append(c.acks, cmd.ack)
		return c.drain()
	default:
		panic(fmt.Sprintf("renderer: unhandled command %T", cmd))
	}
	return nil
}

func (c *coordinator) update(cmd updateCommand) {
	c.gl.update(cmd.db, cmd.sceneID, cmd.cameraID)
	c.updates++
	if c.gl.current != nil {
		c.load()
	}
}

// load uploads any new geometry and the shaders for the current database.
func (c *coordinator) load() {
	if err := c.pipeline.Load(c.gl.current, c.cfg); err != nil {
		c.logger.Errorf("load failed: %v", err)
	}
}

func (c *coordinator) setup(cmd setupCommand) {
	if c.resourceTaken {
		cmd.reply <- nil
		return
	}
	c.resourceTaken = true
	cmd.reply <- c.resource
}

// reclaim checks that a completed drawlist is the one handed to the worker and
// is back in the coordinator's hands, and removes it from the in-flight set.
func (c *coordinator) reclaim(cmd completeCommand) (drawlist.Drawlist, error) {
	dl, ok := c.inflight[cmd.worker]
	if !ok || dl != cmd.dl {
		return nil, fmt.Errorf("%w: worker %d completed a drawlist it was not given", ErrProtocolViolation, cmd.worker)
	}
	if holder := dl.Holder(); holder != drawlist.HolderCoordinator {
		return nil, fmt.Errorf("%w: worker %d completed drawlist %d still held by %d", ErrProtocolViolation, cmd.worker, dl.ID(), holder)
	}
	delete(c.inflight, cmd.worker)
	return dl, nil
}

// submit renders and presents a prepared drawlist, then releases it. Errors
// are logged; the drawlist is always released.
func (c *coordinator) submit(dl drawlist.Drawlist) {
	defer dl.Release()

	if err := dl.PrepareFinal(); err != nil {
		c.logger.Errorf("drawlist %d: %v", dl.ID(), err)
		return
	}

	width, height := c.surface.Size()
	m, err := c.matrices(dl.Camera(), width, height)
	if err != nil {
		c.logger.Errorf("drawlist %d: frame skipped: %v", dl.ID(), err)
		return
	}

	if err := c.pipeline.Render(dl, c.gl.current, m, pipeline.DrawTarget{Width: width, Height: height}); err != nil {
		c.logger.Errorf("drawlist %d: render: %v", dl.ID(), err)
	}
	if err := dl.MarkSubmitted(); err != nil {
		c.logger.Errorf("drawlist %d: %v", dl.ID(), err)
	}
	c.surface.SwapBuffers()
	c.timer.Tick()
}

// matrices builds the camera matrices from the current database, which may be
// newer than the snapshot the drawlist was culled against. Only the camera's
// transform follows newer updates; cameraID is the one bound at dispatch, so
// a later Update that selects another camera takes effect from the next
// dispatched drawlist.
func (c *coordinator) matrices(cameraID scene.ObjectKey, width, height int) (camera.Matrices, error) {
	if c.gl.current == nil {
		return camera.Matrices{}, fmt.Errorf("%w: no scene database", ErrCameraNotFound)
	}
	if _, ok := c.gl.current.Location(cameraID); !ok {
		return camera.Matrices{}, fmt.Errorf("%w: object %d", ErrCameraNotFound, cameraID)
	}
	cam := camera.NewCamera(
		camera.WithWorld(c.gl.current.Position(cameraID)),
		camera.WithViewport(width, height),
		camera.WithFov(c.cfg.FovY),
		camera.WithNear(c.cfg.Near),
		camera.WithFar(c.cfg.Far),
	)
	return cam.Matrices(), nil
}

// drain stops every worker. In-flight drawlists are reclaimed without being
// rendered. Every collected ack is signalled once all workers have stopped.
func (c *coordinator) drain() error {
	c.state = StateDraining
	c.logger.Infof("draining %d worker(s), %d drawlist(s) in flight", c.workers, len(c.inflight))
	c.stopWaiting()
	c.step()

	for c.workers > 0 {
		cmd, ok := c.queue.recv()
		if !ok {
			c.logger.Warningf("command queue closed while draining, %d worker(s) unaccounted for", c.workers)
			break
		}

		switch cmd := cmd.(type) {
		case waitingCommand:
			cmd.reply <- nil
			c.workers--
			if dl, busy := c.inflight[cmd.worker]; busy {
				return fmt.Errorf("%w: worker %d ready while holding drawlist %d", ErrProtocolViolation, cmd.worker, dl.ID())
			}
		case completeCommand:
			dl, err := c.reclaim(cmd)
			if err != nil {
				return err
			}
			dl.Release()
			c.free = append(c.free, dl)
		case setupCommand:
			cmd.reply <- nil
		case updateCommand:
			c.logger.Debugf("update for scene %d discarded while draining", cmd.sceneID)
		case finishCommand:
			c.acks = append(c.acks, cmd.ack)
		default:
			panic(fmt.Sprintf("renderer: unhandled command %T", cmd))
		}
		c.step()
	}

	c.state = StateTerminated
	for _, ack := range c.acks {
		ack <- struct{}{}
	}
	c.acks = nil
	return nil
}

// disconnect handles a queue closed by a failed peer: an implicit shutdown with no ack.
func (c *coordinator) disconnect() {
	c.logger.Warningf("command queue closed, stopping without a shutdown request")
	c.stopWaiting()
}

// stopWaiting sends nil to every queued worker.
func (c *coordinator) stopWaiting() {
	for _, w := range c.waiting {
		w.reply <- nil
		c.workers--
	}
	c.waiting = nil
}

// shutdown runs on every exit path. It closes the queue and answers any request
// still in it so no worker stays blocked on a reply.
func (c *coordinator) shutdown() {
	c.queue.close()
	for {
		cmd, res := c.queue.tryRecv()
		if res != pollItem {
			break
		}
		switch cmd := cmd.(type) {
		case waitingCommand:
			c.waiting = append(c.waiting, cmd)
		case setupCommand:
			cmd.reply <- nil
		case completeCommand:
			if dl, err := c.reclaim(cmd); err == nil {
				dl.Release()
				c.free = append(c.free, dl)
			}
		}
	}
	c.stopWaiting()
	c.closeDrawlists()

	if !c.resourceTaken && c.resource != nil {
		c.resource.Release()
		c.resource = nil
	}
	c.state = StateTerminated
	c.publish()
}

// closeDrawlists stops the preparation pools of every drawlist the coordinator
// still holds. A drawlist held by a worker is closed by that worker.
func (c *coordinator) closeDrawlists() {
	for _, dl := range c.free {
		dl.Close()
	}
	for _, dl := range c.inflight {
		if dl.Holder() == drawlist.HolderCoordinator {
			dl.Close()
		}
	}
}

// step checks pool conservation and publishes stats. A leaked or duplicated
// drawlist is unrecoverable and panics.
func (c *coordinator) step() {
	if got := len(c.free) + len(c.inflight); got != c.settings.poolSize {
		panic(fmt.Sprintf("renderer: drawlist pool broken: %d free + %d in flight != %d",
			len(c.free), len(c.inflight), c.settings.poolSize))
	}
	s := c.publish()
	if c.settings.onStep != nil {
		c.settings.onStep(s)
	}
}

func (c *coordinator) publish() Stats {
	frames := c.timer.Stats()
	s := Stats{
		State:     c.state,
		PoolSize:  c.settings.poolSize,
		Free:      len(c.free),
		InFlight:  len(c.inflight),
		Waiting:   len(c.waiting),
		Workers:   c.workers,
		Updates:   c.updates,
		Frames:    frames.Frames,
		LastFrame: frames.LastFrame,
		FPS:       frames.FPS,
	}
	c.stats.Store(&s)
	return s
}
