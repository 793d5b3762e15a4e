package vector

import (
	"github.com/notargets/MatFree/mirror"
	"github.com/notargets/MatFree/types"
)

// Context is the opaque user data attached to a QFunction. It follows the
// same host/device protocol as Vector.
type Context struct {
	m *mirror.Mirror[uint8]
}

// NewContext creates an empty context of size bytes
func NewContext(dev mirror.Device, size int) (*Context, error) {
	m, err := mirror.New[uint8](dev, size)
	if err != nil {
		return nil, err
	}
	return &Context{m: m}, nil
}

// NewContextFromBytes creates a host context holding a copy of data
func NewContextFromBytes(dev mirror.Device, data []byte) (*Context, error) {
	c, err := NewContext(dev, len(data))
	if err != nil {
		return nil, err
	}
	if err := c.SetData(types.CopyValues, data); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Context) Size() int { return c.m.Length() }

// Device is the device the context mirrors to, nil for host-only contexts
func (c *Context) Device() mirror.Device { return c.m.Device() }

func (c *Context) SetData(cmode types.CopyMode, data []byte) error {
	return c.m.SetHost(cmode, data)
}

func (c *Context) SetDeviceData(cmode types.CopyMode, buf mirror.Buffer) error {
	return c.m.SetDevice(cmode, buf)
}

// GetData returns the host bytes; pair with RestoreData
func (c *Context) GetData() ([]byte, error) {
	return c.m.GetHost()
}

// GetDeviceData returns the device buffer; pair with RestoreData
func (c *Context) GetDeviceData() (mirror.Buffer, error) {
	return c.m.GetDevice()
}

func (c *Context) RestoreData() error {
	return c.m.Restore()
}

func (c *Context) Stats() mirror.Stats { return c.m.Stats() }

func (c *Context) Destroy() error {
	if c == nil {
		return nil
	}
	return c.m.Destroy()
}
