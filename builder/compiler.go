package builder

import (
	"fmt"

	"github.com/notargets/MatFree/types"
)

// Kernel is a compiled kernel ready to run
type Kernel interface {
	Run(args ...any) error
	Free()
}

// Compiler turns kernel source into a runnable kernel. Backends that can
// compile at run time implement it.
type Compiler interface {
	Compile(source, kernelName string) (Kernel, error)
}

// Build prepends the preamble to body and compiles kernelName from it.
// Compiler failures are reported as types.ErrCompile and carry the
// compiler's diagnostic.
func (kb *Builder) Build(c Compiler, body, kernelName string) (Kernel, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: no kernel compiler for %s", types.ErrConfiguration, kernelName)
	}
	source := kb.GeneratePreamble() + "\n" + body
	k, err := c.Compile(source, kernelName)
	if err != nil {
		return nil, fmt.Errorf("%w: kernel %s: %w", types.ErrCompile, kernelName, err)
	}
	if k == nil {
		return nil, fmt.Errorf("%w: kernel %s: compiler returned no kernel", types.ErrCompile, kernelName)
	}
	return k, nil
}
