package vector

import (
	"fmt"

	"github.com/notargets/MatFree/mirror"
	"github.com/notargets/MatFree/types"
)

// Vector is a length-n array of float64 values whose data may live on the
// host, on a device, or both, kept consistent by a mirror.Mirror.
type Vector struct {
	m        *mirror.Mirror[float64]
	sentinel string
}

// Active marks an operator field whose vector is supplied to each Apply call
var Active = &Vector{sentinel: "active"}

// None marks an operator field with no vector (quadrature weights)
var None = &Vector{sentinel: "none"}

// New creates an empty vector; dev may be nil for a host-only vector
func New(dev mirror.Device, n int) (*Vector, error) {
	m, err := mirror.New[float64](dev, n)
	if err != nil {
		return nil, err
	}
	return &Vector{m: m}, nil
}

// NewFromSlice creates a host vector holding a copy of vals
func NewFromSlice(dev mirror.Device, vals []float64) (*Vector, error) {
	v, err := New(dev, len(vals))
	if err != nil {
		return nil, err
	}
	if err := v.SetArray(types.CopyValues, vals); err != nil {
		return nil, err
	}
	return v, nil
}

// IsSentinel reports whether v is Active or None
func (v *Vector) IsSentinel() bool {
	return v != nil && v.sentinel != ""
}

func (v *Vector) String() string {
	if v.IsSentinel() {
		return "Vector(" + v.sentinel + ")"
	}
	return fmt.Sprintf("Vector(n=%d, %v)", v.m.Length(), v.m.State())
}

func (v *Vector) check() error {
	if v == nil {
		return fmt.Errorf("%w: nil vector", types.ErrConfiguration)
	}
	if v.sentinel != "" {
		return fmt.Errorf("%w: the %s sentinel vector holds no data",
			types.ErrConfiguration, v.sentinel)
	}
	return nil
}

// Length is the number of values, zero for sentinels
func (v *Vector) Length() int {
	if v.IsSentinel() {
		return 0
	}
	return v.m.Length()
}

func (v *Vector) SetArray(cmode types.CopyMode, vals []float64) error {
	if err := v.check(); err != nil {
		return err
	}
	return v.m.SetHost(cmode, vals)
}

func (v *Vector) SetDeviceArray(cmode types.CopyMode, buf mirror.Buffer) error {
	if err := v.check(); err != nil {
		return err
	}
	return v.m.SetDevice(cmode, buf)
}

// SetValue sets every entry on the host to val
func (v *Vector) SetValue(val float64) error {
	if err := v.check(); err != nil {
		return err
	}
	return v.m.SetValue(val)
}

// GetArray returns a writable host view; pair with RestoreArray
func (v *Vector) GetArray() ([]float64, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	return v.m.GetHost()
}

// GetArrayRead returns a host view for reading; pair with RestoreArrayRead
func (v *Vector) GetArrayRead() ([]float64, error) {
	return v.GetArray()
}

// GetDeviceArray returns the device buffer; pair with RestoreArray
func (v *Vector) GetDeviceArray() (mirror.Buffer, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	return v.m.GetDevice()
}

func (v *Vector) RestoreArray() error {
	if err := v.check(); err != nil {
		return err
	}
	return v.m.Restore()
}

func (v *Vector) RestoreArrayRead() error {
	return v.RestoreArray()
}

// SyncArray makes mtype current without handing out a view
func (v *Vector) SyncArray(mtype types.MemType) error {
	if err := v.check(); err != nil {
		return err
	}
	return v.m.Sync(mtype)
}

// Values returns a copy of the host data
func (v *Vector) Values() ([]float64, error) {
	arr, err := v.GetArrayRead()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(arr))
	copy(out, arr)
	return out, v.RestoreArrayRead()
}

func (v *Vector) Stats() mirror.Stats {
	if v.IsSentinel() {
		return mirror.Stats{}
	}
	return v.m.Stats()
}

// Outstanding is the number of views not yet restored
func (v *Vector) Outstanding() int {
	if v.IsSentinel() {
		return 0
	}
	return v.m.Outstanding()
}

func (v *Vector) Destroy() error {
	if v == nil || v.IsSentinel() {
		return nil
	}
	return v.m.Destroy()
}
