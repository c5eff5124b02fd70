package renderer

import (
	"fmt"
	"time"
)

// CoordinatorState is the lifecycle stage of the render coordinator.
type CoordinatorState int

const (
	// StateAwaitingResourceSetup is the initial state, left when the first
	// worker asks for the compute resource.
	StateAwaitingResourceSetup CoordinatorState = iota

	// StateRunning pairs idle workers with free drawlists and submits completed ones.
	StateRunning

	// StateDraining stops every worker and reclaims in-flight drawlists without rendering.
	StateDraining

	// StateTerminated is final.
	StateTerminated
)

func (s CoordinatorState) String() string {
	switch s {
	case StateAwaitingResourceSetup:
		return "awaiting-resource-setup"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("coordinator-state(%d)", int(s))
	}
}

// Stats is a snapshot published by the coordinator after every processed message.
type Stats struct {
	State CoordinatorState

	// PoolSize is the number of drawlists. Free + InFlight always equals it;
	// submission is synchronous, so a completed drawlist counts as free.
	PoolSize int
	Free     int
	InFlight int

	// Waiting is the number of idle workers queued for a drawlist.
	Waiting int

	// Workers is the number of workers not yet told to stop.
	Workers int

	// Updates is the number of scene updates applied.
	Updates uint64

	// Frames is the number of presented frames.
	Frames    uint64
	LastFrame time.Duration
	FPS       float64
}
