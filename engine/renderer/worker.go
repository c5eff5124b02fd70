package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/engine/compute"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/drawlist"
	"github.com/Carmen-Shannon/oxy-render/log"
)

// worker prepares drawlists handed out by the coordinator. Workers never touch
// the graphics context and are interchangeable.
type worker struct {
	id     drawlist.Holder
	queue  *commandQueue
	reply  chan drawlist.Drawlist
	setup  chan *compute.Resource
	logger log.Logger

	resource *compute.Resource
	prepared int

	// held is the drawlist not yet returned to the coordinator.
	held drawlist.Drawlist
}

func newWorker(id drawlist.Holder, q *commandQueue, logger log.Logger) *worker {
	return &worker{
		id:     id,
		queue:  q,
		reply:  make(chan drawlist.Drawlist, 1),
		setup:  make(chan *compute.Resource, 1),
		logger: logger,
	}
}

// run loops until the coordinator answers with nil or the queue closes.
func (w *worker) run() {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Errorf("worker %d recovered from panic: %v", w.id, r)
			w.queue.close()
		}
		if w.held != nil {
			w.held.Close()
			w.held = nil
		}
		if w.resource != nil {
			w.resource.Release()
			w.resource = nil
		}
		w.logger.Debugf("worker %d stopped after %d drawlist(s)", w.id, w.prepared)
	}()

	if err := w.queue.send(setupCommand{reply: w.setup}); err != nil {
		return
	}
	w.resource = <-w.setup

	for {
		if err := w.queue.send(waitingCommand{worker: w.id, reply: w.reply}); err != nil {
			return
		}
		dl, ok := <-w.reply
		if !ok || dl == nil {
			return
		}
		w.held = dl

		if err := dl.PrepareAsync(); err != nil {
			w.logger.Warningf("worker %d: drawlist %d: %v", w.id, dl.ID(), err)
		}
		w.prepared++

		if err := dl.Transfer(w.id, drawlist.HolderCoordinator); err != nil {
			w.logger.Errorf("worker %d: %v", w.id, err)
		}
		if err := w.queue.send(completeCommand{worker: w.id, dl: dl}); err != nil {
			return
		}
		w.held = nil
	}
}
