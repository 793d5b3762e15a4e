package mirror

import "unsafe"

// Buffer is a device allocation. The method set matches what an OCCA memory
// handle offers, so backends can wrap their native handle with no copying.
type Buffer interface {
	// CopyFrom copies bytes from host memory at src into the buffer
	CopyFrom(src unsafe.Pointer, bytes int64)
	// CopyTo copies bytes from the buffer into host memory at dst
	CopyTo(dst unsafe.Pointer, bytes int64)
	Free()
}

// Device is the explicit device context threaded through every object that
// can hold device memory. There is no implicit "current device".
type Device interface {
	// Mode names the device backend, e.g. "Serial", "OpenMP", "CUDA", "Mock"
	Mode() string
	Malloc(bytes int64) (Buffer, error)
	// CopyBuffer copies bytes between two buffers owned by this device
	CopyBuffer(dst, src Buffer, bytes int64) error
	// Finish blocks until all queued device work has completed
	Finish()
}
