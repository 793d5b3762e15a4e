package occa

import (
	"github.com/notargets/MatFree/builder"
	"github.com/notargets/MatFree/ceed"
	"github.com/notargets/MatFree/config"
	"github.com/notargets/MatFree/qfunction"
)

func init() {
	ceed.Register("/cpu/occa", backendInit(`{"mode": "Serial"}`))
	ceed.Register("/gpu/occa", backendInit(`{"mode": "CUDA", "device_id": 0}`))
}

// backendInit opens the device named by [occa] props, or defaultProps when
// the config leaves it empty
func backendInit(defaultProps string) ceed.InitFunc {
	return func(resource string, cfg config.Config) (*ceed.Backend, error) {
		props := cfg.OCCA.Props
		if props == "" {
			props = defaultProps
		}
		dev, err := NewDevice(props)
		if err != nil {
			return nil, err
		}
		bcfg := builder.Config{TileSize: cfg.OCCA.TileSize}
		return &ceed.Backend{
			Device:   dev,
			Compiler: dev,
			NewQFunctionImpl: func() qfunction.Impl {
				return NewQFunctionImpl(dev, bcfg)
			},
			Close: func() error {
				dev.Free()
				return nil
			},
		}, nil
	}
}
