package window

// Surface is the display the render coordinator presents to.
//
// The coordinator calls MakeContextCurrent once from its own goroutine before
// any other graphics call and keeps the OS thread for its lifetime; every other
// Surface method is then called from that same goroutine.
type Surface interface {
	// MakeContextCurrent binds the graphics context to the calling thread.
	MakeContextCurrent()

	// SwapBuffers presents the frame rendered since the last swap.
	SwapBuffers()

	// Size returns the drawable size in pixels.
	//
	// Returns:
	//   - width, height: the current framebuffer size
	Size() (width, height int)

	// ContextVersion returns the graphics API version of the context.
	// Backends without a versioned context report (0, 0).
	//
	// Returns:
	//   - major, minor: the version numbers
	ContextVersion() (major, minor int)
}
