package occa

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
	"github.com/rs/zerolog"

	"github.com/notargets/MatFree/builder"
	"github.com/notargets/MatFree/logging"
	"github.com/notargets/MatFree/mirror"
	"github.com/notargets/MatFree/types"
)

// Device adapts an OCCA device to the mirror and kernel compiler
// interfaces
type Device struct {
	dev   *gocca.OCCADevice
	owned bool
	log   zerolog.Logger
}

var (
	_ mirror.Device    = (*Device)(nil)
	_ builder.Compiler = (*Device)(nil)
)

// NewDevice opens an OCCA device from its JSON properties, for example
// {"mode": "Serial"}
func NewDevice(props string) (*Device, error) {
	dev, err := gocca.NewDevice(props)
	if err != nil {
		return nil, fmt.Errorf("%w: occa device %s: %w", types.ErrConfiguration, props, err)
	}
	d := Wrap(dev)
	d.owned = true
	d.log.Debug().Str("mode", dev.Mode()).Msg("occa device opened")
	return d, nil
}

// Wrap adapts an existing device; Free leaves it open
func Wrap(dev *gocca.OCCADevice) *Device {
	return &Device{dev: dev, log: logging.For("occa")}
}

func (d *Device) Mode() string { return d.dev.Mode() }

// OCCA returns the underlying device
func (d *Device) OCCA() *gocca.OCCADevice { return d.dev }

func (d *Device) Malloc(bytes int64) (mirror.Buffer, error) {
	if bytes < 0 {
		return nil, fmt.Errorf("%w: negative size %d", types.ErrAllocation, bytes)
	}
	// OCCA rejects empty allocations
	size := bytes
	if size == 0 {
		size = 1
	}
	mem := d.dev.Malloc(size, nil, nil)
	if mem == nil {
		return nil, fmt.Errorf("%w: occa %s malloc of %d bytes", types.ErrAllocation, d.Mode(), bytes)
	}
	return &Memory{mem: mem, bytes: bytes}, nil
}

// CopyBuffer stages the copy through host memory
func (d *Device) CopyBuffer(dst, src mirror.Buffer, bytes int64) error {
	if bytes == 0 {
		return nil
	}
	stage := make([]byte, bytes)
	src.CopyTo(unsafe.Pointer(&stage[0]), bytes)
	dst.CopyFrom(unsafe.Pointer(&stage[0]), bytes)
	return nil
}

func (d *Device) Finish() { d.dev.Finish() }

// Compile builds kernelName from OKL source
func (d *Device) Compile(source, kernelName string) (builder.Kernel, error) {
	var (
		kernel *gocca.OCCAKernel
		err    error
	)
	if d.Mode() == "OpenMP" {
		// OpenMP does not get -O3 by default
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = d.dev.BuildKernelFromString(source, kernelName, props)
	} else {
		kernel, err = d.dev.BuildKernelFromString(source, kernelName, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: occa %s kernel %s: %w", types.ErrCompile, d.Mode(), kernelName, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("%w: occa %s kernel %s was not built", types.ErrCompile, d.Mode(), kernelName)
	}
	d.log.Debug().Str("kernel", kernelName).Str("mode", d.Mode()).Msg("kernel built")
	return &Kernel{k: kernel}, nil
}

// Free closes the device if NewDevice opened it
func (d *Device) Free() {
	if d.owned && d.dev != nil {
		d.dev.Free()
		d.dev = nil
	}
}

// Memory is an OCCA allocation used as a mirror.Buffer
type Memory struct {
	mem   *gocca.OCCAMemory
	bytes int64
}

var _ mirror.Buffer = (*Memory)(nil)

func (m *Memory) CopyFrom(src unsafe.Pointer, bytes int64) {
	if bytes > 0 {
		m.mem.CopyFrom(src, bytes)
	}
}

func (m *Memory) CopyTo(dst unsafe.Pointer, bytes int64) {
	if bytes > 0 {
		m.mem.CopyTo(dst, bytes)
	}
}

func (m *Memory) Free() {
	if m.mem != nil {
		m.mem.Free()
		m.mem = nil
	}
}

// OCCA returns the underlying memory for use as a kernel argument
func (m *Memory) OCCA() *gocca.OCCAMemory { return m.mem }

func (m *Memory) Bytes() int64 { return m.bytes }

// Kernel is a compiled OCCA kernel
type Kernel struct {
	k *gocca.OCCAKernel
}

// Run launches the kernel. *Memory arguments are passed as their OCCA
// memory; everything else is passed through.
func (k *Kernel) Run(args ...any) error {
	occaArgs := make([]interface{}, len(args))
	for i, a := range args {
		if m, ok := a.(*Memory); ok {
			occaArgs[i] = m.mem
			continue
		}
		occaArgs[i] = a
	}
	if err := k.k.RunWithArgs(occaArgs...); err != nil {
		return fmt.Errorf("%w: kernel execution failed: %w", types.ErrCompute, err)
	}
	return nil
}

func (k *Kernel) Free() {
	if k.k != nil {
		k.k.Free()
		k.k = nil
	}
}
