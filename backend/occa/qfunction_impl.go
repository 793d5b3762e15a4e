package occa

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/notargets/MatFree/builder"
	"github.com/notargets/MatFree/mirror"
	"github.com/notargets/MatFree/qfunction"
	"github.com/notargets/MatFree/types"
)

// QFunctionImpl runs a QFunction's OKL source on an OCCA device. The
// wrapper kernel is built on the first Apply, once the values per point of
// every field are known. Calls are serialised since the device buffers are
// shared.
type QFunctionImpl struct {
	mu      sync.Mutex
	dev     *Device
	cfg     builder.Config
	kernel  builder.Kernel
	inSize  []int // values per point
	outSize []int

	npts    int // points the buffers are sized for
	in, out []mirror.Buffer
	ctxBuf  mirror.Buffer // staging for contexts that do not live on dev
	ctxLen  int64
}

var _ qfunction.Impl = (*QFunctionImpl)(nil)

func NewQFunctionImpl(dev *Device, cfg builder.Config) *QFunctionImpl {
	return &QFunctionImpl{dev: dev, cfg: cfg}
}

func (impl *QFunctionImpl) Apply(qf *qfunction.QFunction, Q int, in, out [][]float64) (err error) {
	impl.mu.Lock()
	defer impl.mu.Unlock()

	if impl.kernel == nil {
		if err = impl.build(qf, Q, in, out); err != nil {
			return err
		}
	}
	if Q > impl.npts {
		if err = impl.allocate(Q); err != nil {
			return err
		}
	}

	args := make([]any, 0, 2+len(in)+len(out))
	args = append(args, int32(Q))
	ctxArg, release, err := impl.context(qf)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, release()) }()
	args = append(args, ctxArg)

	for i, buf := range impl.in {
		n := impl.inSize[i] * Q
		if len(in[i]) < n {
			return fmt.Errorf("%w: qfunction %s input %d has %d values, need %d",
				types.ErrConfiguration, qf.Name(), i, len(in[i]), n)
		}
		if n > 0 {
			buf.CopyFrom(unsafe.Pointer(&in[i][0]), int64(n*8))
		}
		args = append(args, buf)
	}
	for _, buf := range impl.out {
		args = append(args, buf)
	}

	if err = impl.kernel.Run(args...); err != nil {
		return fmt.Errorf("qfunction %s: %w", qf.Name(), err)
	}
	impl.dev.Finish()

	for i, buf := range impl.out {
		n := impl.outSize[i] * Q
		if len(out[i]) < n {
			return fmt.Errorf("%w: qfunction %s output %d has %d values, need %d",
				types.ErrConfiguration, qf.Name(), i, len(out[i]), n)
		}
		if n > 0 {
			buf.CopyTo(unsafe.Pointer(&out[i][0]), int64(n*8))
		}
	}
	return nil
}

// build derives the values per point from the first call's slices and
// compiles the wrapper kernel
func (impl *QFunctionImpl) build(qf *qfunction.QFunction, Q int, in, out [][]float64) error {
	name, source := qf.Kernel()
	if source == "" {
		return fmt.Errorf("%w: qfunction %s has no kernel source", types.ErrConfiguration, qf.Name())
	}
	if Q < 1 {
		return fmt.Errorf("%w: qfunction %s: Q=%d", types.ErrConfiguration, qf.Name(), Q)
	}
	impl.inSize = perPoint(in, Q)
	impl.outSize = perPoint(out, Q)

	kb := builder.NewBuilder(impl.cfg)
	body := kb.QFunctionKernelSource(name, source, impl.inSize, impl.outSize)
	k, err := kb.Build(impl.dev, body, builder.QFunctionKernelName(name))
	if err != nil {
		return fmt.Errorf("qfunction %s: %w", qf.Name(), err)
	}
	impl.kernel = k
	return nil
}

func perPoint(fields [][]float64, Q int) []int {
	sizes := make([]int, len(fields))
	for i, f := range fields {
		sizes[i] = len(f) / Q
	}
	return sizes
}

// allocate sizes the field buffers for Q points
func (impl *QFunctionImpl) allocate(Q int) error {
	impl.freeFields()
	impl.in = make([]mirror.Buffer, len(impl.inSize))
	impl.out = make([]mirror.Buffer, len(impl.outSize))
	for _, set := range []struct {
		bufs  []mirror.Buffer
		sizes []int
	}{{impl.in, impl.inSize}, {impl.out, impl.outSize}} {
		for i, n := range set.sizes {
			buf, err := impl.dev.Malloc(int64(n * Q * 8))
			if err != nil {
				impl.freeFields()
				return err
			}
			set.bufs[i] = buf
		}
	}
	impl.npts = Q
	return nil
}

// context returns the kernel argument for the QFunction context. A context
// mirrored on this device is passed as its device buffer; any other context
// is staged through ctxBuf.
func (impl *QFunctionImpl) context(qf *qfunction.QFunction) (any, func() error, error) {
	noop := func() error { return nil }
	ctx := qf.Context()
	if ctx != nil && ctx.Device() == mirror.Device(impl.dev) {
		buf, err := ctx.GetDeviceData()
		if err != nil {
			return nil, noop, err
		}
		return buf, ctx.RestoreData, nil
	}

	size := int64(0)
	if ctx != nil {
		size = int64(ctx.Size())
	}
	if impl.ctxBuf == nil || impl.ctxLen < size {
		if impl.ctxBuf != nil {
			impl.ctxBuf.Free()
		}
		buf, err := impl.dev.Malloc(size)
		if err != nil {
			impl.ctxBuf = nil
			return nil, noop, err
		}
		impl.ctxBuf, impl.ctxLen = buf, size
	}
	if size > 0 {
		data, err := ctx.GetData()
		if err != nil {
			return nil, noop, err
		}
		impl.ctxBuf.CopyFrom(unsafe.Pointer(&data[0]), size)
		if err := ctx.RestoreData(); err != nil {
			return nil, noop, err
		}
	}
	return impl.ctxBuf, noop, nil
}

func (impl *QFunctionImpl) freeFields() {
	for _, bufs := range [][]mirror.Buffer{impl.in, impl.out} {
		for _, b := range bufs {
			if b != nil {
				b.Free()
			}
		}
	}
	impl.in, impl.out, impl.npts = nil, nil, 0
}

// Destroy frees the kernel and every device buffer
func (impl *QFunctionImpl) Destroy() error {
	impl.mu.Lock()
	defer impl.mu.Unlock()
	impl.freeFields()
	if impl.ctxBuf != nil {
		impl.ctxBuf.Free()
		impl.ctxBuf, impl.ctxLen = nil, 0
	}
	if impl.kernel != nil {
		impl.kernel.Free()
		impl.kernel = nil
	}
	return nil
}
