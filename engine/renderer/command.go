package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/engine/compute"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/drawlist"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

// command is a message on the coordinator's control queue. The set of kinds is
// closed: only types in this file implement it.
type command interface {
	isCommand()
}

// updateCommand replaces the current scene database and the active scene and camera.
type updateCommand struct {
	db       scene.Database
	sceneID  scene.ObjectKey
	cameraID scene.ObjectKey
}

// waitingCommand announces that a worker is idle. The coordinator answers on
// reply with a bound drawlist, or nil to stop the worker.
type waitingCommand struct {
	worker drawlist.Holder
	reply  chan<- drawlist.Drawlist
}

// completeCommand returns a prepared drawlist to the coordinator for submission.
type completeCommand struct {
	worker drawlist.Holder
	dl     drawlist.Drawlist
}

// setupCommand asks for the compute resource. Only the first request receives it.
type setupCommand struct {
	reply chan<- *compute.Resource
}

// finishCommand starts the shutdown drain. ack is signalled once every worker has stopped.
type finishCommand struct {
	ack chan<- struct{}
}

func (updateCommand) isCommand()   {}
func (waitingCommand) isCommand()  {}
func (completeCommand) isCommand() {}
func (setupCommand) isCommand()    {}
func (finishCommand) isCommand()   {}
