package types

import "fmt"

// MemType identifies where a buffer lives
type MemType int

const (
	MemHost MemType = iota
	MemDevice
)

func (m MemType) String() string {
	switch m {
	case MemHost:
		return "host"
	case MemDevice:
		return "device"
	}
	return fmt.Sprintf("MemType(%d)", int(m))
}

// CopyMode controls what happens to a caller-supplied buffer handed to a
// Vector or Context
type CopyMode int

const (
	// CopyValues duplicates the caller's data into a buffer the object owns
	CopyValues CopyMode = iota
	// OwnPointer takes ownership of the caller's buffer
	OwnPointer
	// UsePointer borrows the caller's buffer; the caller keeps ownership
	UsePointer
)

func (c CopyMode) String() string {
	switch c {
	case CopyValues:
		return "copy"
	case OwnPointer:
		return "own"
	case UsePointer:
		return "use"
	}
	return fmt.Sprintf("CopyMode(%d)", int(c))
}

// EvalMode selects the basis action used for an operator field. The values
// are bit flags so a QFunction can describe several modes at once.
type EvalMode int

const (
	EvalNone   EvalMode = 0
	EvalInterp EvalMode = 1
	EvalGrad   EvalMode = 2
	EvalDiv    EvalMode = 4
	EvalCurl   EvalMode = 8
	EvalWeight EvalMode = 16
)

func (e EvalMode) String() string {
	switch e {
	case EvalNone:
		return "none"
	case EvalInterp:
		return "interp"
	case EvalGrad:
		return "grad"
	case EvalDiv:
		return "div"
	case EvalCurl:
		return "curl"
	case EvalWeight:
		return "weight"
	}
	return fmt.Sprintf("EvalMode(%d)", int(e))
}

// Supported reports whether the mode has a basis implementation. Div and Curl
// are part of the field model but have none.
func (e EvalMode) Supported() bool {
	switch e {
	case EvalNone, EvalInterp, EvalGrad, EvalWeight:
		return true
	}
	return false
}

// TransposeMode selects the forward or adjoint action of a restriction or
// basis
type TransposeMode int

const (
	NoTranspose TransposeMode = iota
	Transpose
)

func (t TransposeMode) String() string {
	if t == Transpose {
		return "transpose"
	}
	return "notranspose"
}

// InterlaceMode is the layout of components in a global (L-) vector.
// NonInterlaced stores each component contiguously: index = node + comp*lsize.
// Interlaced stores the components of a node together: index = node*ncomp + comp.
type InterlaceMode int

const (
	NonInterlaced InterlaceMode = iota
	Interlaced
)

func (i InterlaceMode) String() string {
	if i == Interlaced {
		return "interlaced"
	}
	return "noninterlaced"
}
