package ceed

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/notargets/MatFree/builder"
	"github.com/notargets/MatFree/config"
	"github.com/notargets/MatFree/logging"
	"github.com/notargets/MatFree/mirror"
	"github.com/notargets/MatFree/operator"
	"github.com/notargets/MatFree/qfunction"
	"github.com/notargets/MatFree/types"
	"github.com/notargets/MatFree/vector"
)

// Ceed is a session on one backend. Objects created through it share the
// backend's device.
type Ceed struct {
	Resource string
	Backend  string // registered prefix that matched Resource
	Config   config.Config
	Device   mirror.Device
	Compiler builder.Compiler
	Log      zerolog.Logger

	backend *Backend
	closed  bool
}

// Init opens a session. An empty resource uses cfg.Resource.
func Init(resource string, cfg config.Config) (*Ceed, error) {
	if resource == "" {
		resource = cfg.Resource
	}
	cfg.Resource = resource
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	prefix, initFn, err := lookup(resource)
	if err != nil {
		return nil, err
	}
	b, err := initFn(resource, cfg)
	if err != nil {
		return nil, fmt.Errorf("ceed: init %s: %w", resource, err)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: backend %s returned nothing", types.ErrConfiguration, prefix)
	}

	c := &Ceed{
		Resource: resource,
		Backend:  prefix,
		Config:   cfg,
		Device:   b.Device,
		Compiler: b.Compiler,
		Log:      logging.For("ceed").With().Str("resource", resource).Logger(),
		backend:  b,
	}
	mode := "host"
	if b.Device != nil {
		mode = b.Device.Mode()
	}
	c.Log.Info().Str("backend", prefix).Str("mode", mode).Msg("session opened")
	return c, nil
}

func (c *Ceed) check() error {
	if c.closed {
		return fmt.Errorf("%w: session %s is closed", types.ErrConfiguration, c.Resource)
	}
	return nil
}

func (c *Ceed) NewVector(n int) (*vector.Vector, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return vector.New(c.Device, n)
}

func (c *Ceed) NewVectorFromSlice(vals []float64) (*vector.Vector, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return vector.NewFromSlice(c.Device, vals)
}

// NewContext creates a QFunction context holding a copy of data
func (c *Ceed) NewContext(data []byte) (*vector.Context, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return vector.NewContextFromBytes(c.Device, data)
}

// NewQFunction creates a QFunction evaluated by fn on the host, or by
// kernelSource on the backend when the backend compiles kernels. The
// source defines the function name.
func (c *Ceed) NewQFunction(name string, vlength int, fn qfunction.UserFunc, kernelSource string) (*qfunction.QFunction, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	qf, err := qfunction.New(name, vlength, fn)
	if err != nil {
		return nil, err
	}
	if kernelSource != "" {
		qf.SetKernel(name, kernelSource)
	}
	return qf, c.attach(qf)
}

// NewQFunctionByName builds a gallery QFunction on this session's backend
func (c *Ceed) NewQFunctionByName(name string) (*qfunction.QFunction, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	qf, err := qfunction.ByName(name)
	if err != nil {
		return nil, err
	}
	return qf, c.attach(qf)
}

func (c *Ceed) attach(qf *qfunction.QFunction) error {
	if c.backend.NewQFunctionImpl == nil {
		return nil
	}
	if _, source := qf.Kernel(); source == "" {
		return nil
	}
	return qf.SetImpl(c.backend.NewQFunctionImpl())
}

// NewOperator creates an operator using the session's worker count and
// partition strategy; opts override them
func (c *Ceed) NewOperator(qf *qfunction.QFunction, opts ...operator.Option) (*operator.Operator, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	base := []operator.Option{
		operator.WithWorkers(c.Config.Workers),
		operator.WithPartitionStrategy(c.Config.PartitionStrategy),
		operator.WithLogger(logging.For("operator").With().Str("resource", c.Resource).Logger()),
	}
	return operator.New(qf, append(base, opts...)...)
}

// Close releases the backend. Objects created by the session must be
// destroyed first.
func (c *Ceed) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.backend.Close != nil {
		if err := c.backend.Close(); err != nil {
			return fmt.Errorf("ceed: close %s: %w", c.Resource, err)
		}
	}
	c.Log.Debug().Msg("session closed")
	return nil
}
