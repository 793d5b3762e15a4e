package mirror

import (
	"fmt"
	"unsafe"

	"github.com/notargets/MatFree/types"
)

// Scalar is the element type a Mirror can hold
type Scalar interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8
}

// SyncState records which location of a Mirror holds the authoritative data
type SyncState int

const (
	// SyncNone means no data has been set at either location
	SyncNone SyncState = iota
	SyncHost
	SyncDevice
)

func (s SyncState) String() string {
	switch s {
	case SyncHost:
		return "host-valid"
	case SyncDevice:
		return "device-valid"
	}
	return "unsynced"
}

// Stats counts the transfers and allocations a Mirror has made
type Stats struct {
	HostToDevice int
	DeviceToHost int
	HostAllocs   int
	DeviceAllocs int
}

// Mirror keeps one logical buffer of n values that may live in host memory,
// device memory or both. Exactly one location is authoritative at a time;
// reading the other location costs exactly one copy and moves the authority
// there. A Mirror is not safe for concurrent use.
type Mirror[T Scalar] struct {
	dev Device
	n   int

	host      []T
	hostOwned bool

	device      Buffer
	deviceOwned bool

	state SyncState
	views int
	stats Stats
}

// New creates an empty mirror of n values. A nil device makes a host-only
// mirror on which every device request is a configuration error.
func New[T Scalar](dev Device, n int) (*Mirror[T], error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative mirror length %d", types.ErrConfiguration, n)
	}
	return &Mirror[T]{dev: dev, n: n}, nil
}

func (m *Mirror[T]) Length() int { return m.n }

func (m *Mirror[T]) State() SyncState { return m.state }

func (m *Mirror[T]) Stats() Stats { return m.stats }

// Outstanding is the number of views handed out by Get* and not yet restored
func (m *Mirror[T]) Outstanding() int { return m.views }

// Device returns the device context, nil for host-only mirrors
func (m *Mirror[T]) Device() Device { return m.dev }

func (m *Mirror[T]) bytes() int64 {
	var zero T
	return int64(m.n) * int64(unsafe.Sizeof(zero))
}

func (m *Mirror[T]) hostPtr() unsafe.Pointer {
	if len(m.host) == 0 {
		return nil
	}
	return unsafe.Pointer(&m.host[0])
}

// SetHost installs host data. Replacing an owned host buffer drops it; the
// device copy, if any, becomes stale.
func (m *Mirror[T]) SetHost(cmode types.CopyMode, data []T) error {
	if len(data) < m.n {
		return fmt.Errorf("%w: host array has %d values, need %d",
			types.ErrConfiguration, len(data), m.n)
	}
	switch cmode {
	case types.CopyValues:
		if m.host == nil || !m.hostOwned {
			m.allocHost()
		}
		copy(m.host, data[:m.n])
	case types.OwnPointer:
		m.host = data[:m.n]
		m.hostOwned = true
	case types.UsePointer:
		m.host = data[:m.n]
		m.hostOwned = false
	default:
		return fmt.Errorf("%w: unknown copy mode %v", types.ErrConfiguration, cmode)
	}
	m.state = SyncHost
	return nil
}

// SetDevice installs a device buffer of at least Length values. Replacing an
// owned device buffer frees it first; the host copy becomes stale.
func (m *Mirror[T]) SetDevice(cmode types.CopyMode, buf Buffer) error {
	if m.dev == nil {
		return fmt.Errorf("%w: %v memory requested on a host-only object",
			types.ErrConfiguration, types.MemDevice)
	}
	if buf == nil {
		return fmt.Errorf("%w: nil device buffer", types.ErrConfiguration)
	}
	switch cmode {
	case types.CopyValues:
		if m.device == nil || !m.deviceOwned {
			if err := m.allocDevice(); err != nil {
				return err
			}
		}
		if m.n > 0 {
			if err := m.dev.CopyBuffer(m.device, buf, m.bytes()); err != nil {
				return fmt.Errorf("device copy failed: %w", err)
			}
		}
	case types.OwnPointer, types.UsePointer:
		if buf != m.device {
			m.freeDevice()
		}
		m.device = buf
		m.deviceOwned = cmode == types.OwnPointer
	default:
		return fmt.Errorf("%w: unknown copy mode %v", types.ErrConfiguration, cmode)
	}
	m.state = SyncDevice
	return nil
}

// SetValue fills the host copy with v and makes it authoritative
func (m *Mirror[T]) SetValue(v T) error {
	if m.host == nil {
		m.allocHost()
	}
	for i := range m.host {
		m.host[i] = v
	}
	m.state = SyncHost
	return nil
}

// Sync brings mtype up to date without handing out a view. The requested
// location becomes the authoritative one.
func (m *Mirror[T]) Sync(mtype types.MemType) error {
	if m.state == SyncNone {
		return fmt.Errorf("%w: %v read before any write", types.ErrNoData, mtype)
	}
	switch mtype {
	case types.MemHost:
		if m.host == nil {
			m.allocHost()
		}
		if m.state == SyncDevice && m.n > 0 {
			// a kernel may still be writing the buffer
			m.dev.Finish()
			m.device.CopyTo(m.hostPtr(), m.bytes())
			m.stats.DeviceToHost++
		}
		m.state = SyncHost
	case types.MemDevice:
		if m.dev == nil {
			return fmt.Errorf("%w: %v memory requested on a host-only object",
				types.ErrConfiguration, mtype)
		}
		if m.device == nil {
			if err := m.allocDevice(); err != nil {
				return err
			}
		}
		if m.state == SyncHost && m.n > 0 {
			m.device.CopyFrom(m.hostPtr(), m.bytes())
			m.stats.HostToDevice++
		}
		m.state = SyncDevice
	default:
		return fmt.Errorf("%w: unknown memory type %v", types.ErrConfiguration, mtype)
	}
	return nil
}

// GetHost returns the host copy, copying from the device first if the device
// holds the current data. Every call must be paired with Restore.
func (m *Mirror[T]) GetHost() ([]T, error) {
	if err := m.Sync(types.MemHost); err != nil {
		return nil, err
	}
	m.views++
	return m.host, nil
}

// GetDevice returns the device buffer, copying from the host first if the
// host holds the current data. Every call must be paired with Restore.
func (m *Mirror[T]) GetDevice() (Buffer, error) {
	if err := m.Sync(types.MemDevice); err != nil {
		return nil, err
	}
	m.views++
	return m.device, nil
}

// Restore completes a prior GetHost or GetDevice
func (m *Mirror[T]) Restore() error {
	if m.views == 0 {
		return fmt.Errorf("%w: restore without a matching get", types.ErrConfiguration)
	}
	m.views--
	return nil
}

// Destroy releases every owned allocation. It refuses while views are
// outstanding.
func (m *Mirror[T]) Destroy() error {
	if m.views > 0 {
		return fmt.Errorf("%w: destroy with %d outstanding views",
			types.ErrConfiguration, m.views)
	}
	m.freeDevice()
	m.host = nil
	m.hostOwned = false
	m.state = SyncNone
	return nil
}

func (m *Mirror[T]) allocHost() {
	m.host = make([]T, m.n)
	m.hostOwned = true
	m.stats.HostAllocs++
}

func (m *Mirror[T]) allocDevice() error {
	buf, err := m.dev.Malloc(m.bytes())
	if err != nil {
		return fmt.Errorf("%w: device malloc of %d bytes: %v",
			types.ErrAllocation, m.bytes(), err)
	}
	m.device = buf
	m.deviceOwned = true
	m.stats.DeviceAllocs++
	return nil
}

func (m *Mirror[T]) freeDevice() {
	if m.device != nil && m.deviceOwned {
		m.device.Free()
	}
	m.device = nil
	m.deviceOwned = false
}
