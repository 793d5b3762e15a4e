package types

import "errors"

// Error taxonomy shared by every package. Callers classify failures with
// errors.Is; the wrapped message carries the detail.
var (
	// ErrConfiguration covers field/signature mismatches, bad sizes and
	// unsupported memory-type requests.
	ErrConfiguration = errors.New("matfree: configuration error")

	// ErrNoData is returned when a buffer is read before any location was
	// populated.
	ErrNoData = errors.New("matfree: no data set")

	// ErrAllocation reports a host or device allocation failure.
	ErrAllocation = errors.New("matfree: allocation failed")

	// ErrCompile reports a kernel that failed to build.
	ErrCompile = errors.New("matfree: kernel compile failed")

	// ErrCompute reports a failure inside a pointwise function, basis or
	// restriction while applying an operator.
	ErrCompute = errors.New("matfree: compute failed")
)
