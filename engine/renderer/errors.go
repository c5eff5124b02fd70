package renderer

import "errors"

var (
	// ErrCoordinatorTerminated is returned by Manager.Update once the coordinator has exited.
	ErrCoordinatorTerminated = errors.New("renderer: coordinator terminated")

	// ErrNilDatabase is returned by Manager.Update when given a nil database.
	ErrNilDatabase = errors.New("renderer: nil scene database")

	// ErrProtocolViolation is the exit error of a coordinator that received a
	// message breaking the drawlist hand-off rules.
	ErrProtocolViolation = errors.New("renderer: protocol violation")

	// ErrCameraNotFound is logged when a completed drawlist names a camera that
	// has no location in the current database. The frame is skipped.
	ErrCameraNotFound = errors.New("renderer: camera not found")

	errQueueClosed = errors.New("renderer: command queue closed")
)
