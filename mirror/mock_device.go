package mirror

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/notargets/MatFree/types"
)

// MockDevice is a Device backed by ordinary host memory. It counts
// allocations, frees and Finish calls so tests can check transfer behaviour
// without an accelerator.
type MockDevice struct {
	mu       sync.Mutex
	allocs   int
	frees    int
	finishes int
	live     int64

	// MaxBytes, when positive, makes Malloc fail once live allocations would
	// exceed it
	MaxBytes int64
}

// MockCounters is a snapshot of a MockDevice's counters
type MockCounters struct {
	Allocs    int
	Frees     int
	Finishes  int
	LiveBytes int64
}

var _ Device = (*MockDevice)(nil)
var _ Buffer = (*MockBuffer)(nil)

func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

func (d *MockDevice) Mode() string { return "Mock" }

func (d *MockDevice) Malloc(bytes int64) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if bytes < 0 {
		return nil, fmt.Errorf("%w: negative size %d", types.ErrAllocation, bytes)
	}
	if d.MaxBytes > 0 && d.live+bytes > d.MaxBytes {
		return nil, fmt.Errorf("%w: mock device limit %d bytes", types.ErrAllocation, d.MaxBytes)
	}
	d.allocs++
	d.live += bytes
	return &MockBuffer{data: make([]byte, bytes), dev: d}, nil
}

func (d *MockDevice) CopyBuffer(dst, src Buffer, bytes int64) error {
	db, ok1 := dst.(*MockBuffer)
	sb, ok2 := src.(*MockBuffer)
	if !ok1 || !ok2 {
		return fmt.Errorf("%w: buffers do not belong to a mock device", types.ErrConfiguration)
	}
	if bytes > int64(len(db.data)) || bytes > int64(len(sb.data)) {
		return fmt.Errorf("%w: copy of %d bytes exceeds buffer size", types.ErrConfiguration, bytes)
	}
	copy(db.data[:bytes], sb.data[:bytes])
	return nil
}

func (d *MockDevice) Finish() {
	d.mu.Lock()
	d.finishes++
	d.mu.Unlock()
}

func (d *MockDevice) Counters() MockCounters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return MockCounters{Allocs: d.allocs, Frees: d.frees, Finishes: d.finishes, LiveBytes: d.live}
}

// MockBuffer is the allocation handed out by MockDevice
type MockBuffer struct {
	data  []byte
	dev   *MockDevice
	freed bool
}

func (b *MockBuffer) CopyFrom(src unsafe.Pointer, bytes int64) {
	if bytes == 0 {
		return
	}
	copy(b.data, unsafe.Slice((*byte)(src), bytes))
}

func (b *MockBuffer) CopyTo(dst unsafe.Pointer, bytes int64) {
	if bytes == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), bytes), b.data)
}

func (b *MockBuffer) Free() {
	if b.freed || b.dev == nil {
		return
	}
	b.freed = true
	b.dev.mu.Lock()
	b.dev.frees++
	b.dev.live -= int64(len(b.data))
	b.dev.mu.Unlock()
}

// Freed reports whether Free has been called
func (b *MockBuffer) Freed() bool { return b.freed }

// Float64s views the buffer as float64 values, standing in for a kernel
// reading or writing device memory
func (b *MockBuffer) Float64s() []float64 {
	if len(b.data) < 8 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&b.data[0])), len(b.data)/8)
}

// Bytes exposes the raw device bytes
func (b *MockBuffer) Bytes() []byte { return b.data }
