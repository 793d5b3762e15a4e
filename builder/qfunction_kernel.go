package builder

import (
	"fmt"
	"strings"
)

// QFunctionKernelName is the name of the wrapper kernel generated for the
// pointwise function name
func QFunctionKernelName(name string) string {
	return name + "_qf"
}

// QFunctionKernelSource generates a kernel that evaluates the pointwise
// function name at every quadrature point. userSource must define
//
//	inline void name(const char *ctx, const real_t *in[], real_t *out[])
//
// reading and writing one point at a time. inSizes[i] and outSizes[i] are
// the values per point of each field; field data is laid out [value][q].
// The kernel arguments are (Q, ctx, in_0 ... in_N, out_0 ... out_M).
func (kb *Builder) QFunctionKernelSource(name, userSource string, inSizes, outSizes []int) string {
	kb.AddDefine("NUM_IN", len(inSizes))
	kb.AddDefine("NUM_OUT", len(outSizes))
	kb.AddDefine("TILE_SIZE", kb.TileSize)
	for i, n := range inSizes {
		kb.AddDefine(fmt.Sprintf("SIZE_IN_%d", i), n)
	}
	for i, n := range outSizes {
		kb.AddDefine(fmt.Sprintf("SIZE_OUT_%d", i), n)
	}

	var sb strings.Builder
	sb.WriteString(userSource)
	sb.WriteString("\n")

	args := []string{"const int_t Q", "const char *ctx"}
	for i := range inSizes {
		args = append(args, fmt.Sprintf("const real_t *in_%d", i))
	}
	for i := range outSizes {
		args = append(args, fmt.Sprintf("real_t *out_%d", i))
	}
	sb.WriteString(fmt.Sprintf("@kernel void %s(%s) {\n", QFunctionKernelName(name), strings.Join(args, ", ")))
	sb.WriteString("  for (int_t tile = 0; tile < Q; tile += TILE_SIZE; @outer) {\n")
	sb.WriteString("    for (int_t q = tile; q < tile + TILE_SIZE; ++q; @inner) {\n")
	sb.WriteString("      if (q < Q) {\n")

	for i := range inSizes {
		sb.WriteString(fmt.Sprintf("        real_t u_%d[SIZE_IN_%d];\n", i, i))
		sb.WriteString(fmt.Sprintf("        for (int_t j = 0; j < SIZE_IN_%d; ++j) u_%d[j] = in_%d[q + j*Q];\n", i, i, i))
	}
	for i := range outSizes {
		sb.WriteString(fmt.Sprintf("        real_t v_%d[SIZE_OUT_%d];\n", i, i))
	}
	sb.WriteString(fmt.Sprintf("        const real_t *in[%s] = {%s};\n", arrayLen(len(inSizes), "NUM_IN"), list("u_", len(inSizes))))
	sb.WriteString(fmt.Sprintf("        real_t *out[%s] = {%s};\n", arrayLen(len(outSizes), "NUM_OUT"), list("v_", len(outSizes))))
	sb.WriteString(fmt.Sprintf("        %s(ctx, in, out);\n", name))
	for i := range outSizes {
		sb.WriteString(fmt.Sprintf("        for (int_t j = 0; j < SIZE_OUT_%d; ++j) out_%d[q + j*Q] = v_%d[j];\n", i, i, i))
	}

	sb.WriteString("      }\n")
	sb.WriteString("    }\n")
	sb.WriteString("  }\n")
	sb.WriteString("}\n")
	return sb.String()
}

// arrayLen keeps zero-length pointer arrays legal C
func arrayLen(n int, define string) string {
	if n == 0 {
		return "1"
	}
	return define
}

func list(prefix string, n int) string {
	if n == 0 {
		return "0"
	}
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(names, ", ")
}
