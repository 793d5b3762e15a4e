package builder

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// DataType represents the precision of numerical data
type DataType int

const (
	Float32 DataType = iota + 1
	Float64
	INT32
	INT64
)

// Define is one preprocessor definition emitted into the kernel preamble
type Define struct {
	Name  string
	Value any
}

// Builder generates kernel source: a preamble of type definitions, defines
// and static matrices, followed by kernel bodies
type Builder struct {
	// Type configuration
	FloatType DataType
	IntType   DataType

	// Quadrature points handled per outer iteration of generated kernels
	TileSize int

	// Emitted in insertion order
	Defines []Define

	// Static data to embed, emitted in name order
	StaticMatrices map[string]mat.Matrix

	// Generated code
	KernelPreamble string
}

// Config holds configuration for creating a Builder
type Config struct {
	FloatType DataType
	IntType   DataType
	TileSize  int
}

const DefaultTileSize = 64

// NewBuilder creates a new Builder instance
func NewBuilder(cfg Config) *Builder {
	// Set defaults
	floatType := cfg.FloatType
	if floatType == 0 {
		floatType = Float64
	}
	intType := cfg.IntType
	if intType == 0 {
		intType = INT32
	}
	tile := cfg.TileSize
	if tile < 1 {
		tile = DefaultTileSize
	}
	return &Builder{
		FloatType:      floatType,
		IntType:        intType,
		TileSize:       tile,
		StaticMatrices: make(map[string]mat.Matrix),
	}
}

// AddDefine appends a #define; a later define of the same name replaces the
// value in place
func (kb *Builder) AddDefine(name string, value any) {
	for i := range kb.Defines {
		if kb.Defines[i].Name == name {
			kb.Defines[i].Value = value
			return
		}
	}
	kb.Defines = append(kb.Defines, Define{Name: name, Value: value})
}

// AddStaticMatrix adds a matrix to be embedded as static const in kernels
func (kb *Builder) AddStaticMatrix(name string, m mat.Matrix) {
	kb.StaticMatrices[name] = m
}

// GeneratePreamble generates the kernel preamble with static data
func (kb *Builder) GeneratePreamble() string {
	var sb strings.Builder

	// 1. Type definitions and constants
	sb.WriteString(kb.generateTypeDefinitions())

	// 2. User defines
	sb.WriteString(kb.generateDefines())

	// 3. Static matrix declarations
	sb.WriteString(kb.generateStaticMatrices())

	kb.KernelPreamble = sb.String()
	return kb.KernelPreamble
}

// generateTypeDefinitions creates type definitions based on precision settings
func (kb *Builder) generateTypeDefinitions() string {
	var sb strings.Builder

	floatTypeStr := "double"
	floatSuffix := ""
	if kb.FloatType == Float32 {
		floatTypeStr = "float"
		floatSuffix = "f"
	}

	intTypeStr := "int"
	if kb.IntType == INT64 {
		intTypeStr = "long"
	}

	sb.WriteString(fmt.Sprintf("typedef %s real_t;\n", floatTypeStr))
	sb.WriteString(fmt.Sprintf("typedef %s int_t;\n", intTypeStr))
	sb.WriteString(fmt.Sprintf("#define REAL_ZERO 0.0%s\n", floatSuffix))
	sb.WriteString(fmt.Sprintf("#define REAL_ONE 1.0%s\n", floatSuffix))
	sb.WriteString("\n")
	return sb.String()
}

func (kb *Builder) generateDefines() string {
	if len(kb.Defines) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, d := range kb.Defines {
		sb.WriteString(fmt.Sprintf("#define %s %v\n", d.Name, d.Value))
	}
	sb.WriteString("\n")
	return sb.String()
}

// generateStaticMatrices converts matrices to static array initializations
func (kb *Builder) generateStaticMatrices() string {
	if len(kb.StaticMatrices) == 0 {
		return ""
	}
	names := make([]string, 0, len(kb.StaticMatrices))
	for name := range kb.StaticMatrices {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("// Static matrices\n")
	for _, name := range names {
		sb.WriteString(kb.formatStaticMatrix(name, kb.StaticMatrices[name]))
	}
	return sb.String()
}

// formatStaticMatrix formats a single matrix as a static C array.
// The matrix is declared [cols][rows] so the first index varies fastest in
// memory, matching the column-major layout of the basis tables.
func (kb *Builder) formatStaticMatrix(name string, m mat.Matrix) string {
	rows, cols := m.Dims()
	var sb strings.Builder

	typeStr := "double"
	if kb.FloatType == Float32 {
		typeStr = "float"
	}

	sb.WriteString(fmt.Sprintf("// Matrix %s stored in column-major format\n", name))
	sb.WriteString(fmt.Sprintf("const %s %s[%d][%d] = {\n", typeStr, name, cols, rows))

	// Write columns (not rows) - this transposes the matrix
	for j := 0; j < cols; j++ {
		sb.WriteString("    {")
		for i := 0; i < rows; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			val := m.At(i, j)
			if kb.FloatType == Float32 {
				sb.WriteString(fmt.Sprintf("%.7ef", val))
			} else {
				sb.WriteString(fmt.Sprintf("%.15e", val))
			}
		}
		sb.WriteString("}")
		if j < cols-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("};\n\n")

	return sb.String()
}

// GetRealSize returns the size of the float type in bytes
func (kb *Builder) GetRealSize() int {
	if kb.FloatType == Float32 {
		return 4
	}
	return 8
}

// GetIntSize returns the size of the integer type in bytes
func (kb *Builder) GetIntSize() int {
	if kb.IntType == INT64 {
		return 8
	}
	return 4
}
