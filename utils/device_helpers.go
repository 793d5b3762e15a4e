package utils

import (
	"errors"
	"fmt"

	"github.com/notargets/gocca"
)

// TestDeviceProps are tried in order by CreateTestDevice
var TestDeviceProps = []string{
	`{"mode": "OpenMP"}`,
	`{"mode": "CUDA", "device_id": 0}`,
	`{"mode": "Serial"}`,
}

// CreateTestDevice creates a Device for testing, preferring parallel backends
func CreateTestDevice() (*gocca.OCCADevice, error) {
	var errs []error
	for _, props := range TestDeviceProps {
		device, err := gocca.NewDevice(props)
		if err == nil {
			return device, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", props, err))
	}
	return nil, fmt.Errorf("no OCCA device available: %w", errors.Join(errs...))
}

// CreateSerialDevice creates a Serial device, the mode every OCCA build has
func CreateSerialDevice() (*gocca.OCCADevice, error) {
	return gocca.NewDevice(`{"mode": "Serial"}`)
}
