package cmdstream

import (
	"fmt"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Interpret is the optional textual interpreter harness mentioned
// alongside the command-stream backend (§4.5.2 "a companion textual
// interpreter harness (optional)"): it executes prog against one query
// position and returns the same (Color, Distance) the kernel backend's
// generated `model` function would, bit-exact up to host-intrinsic
// rounding differences. It is never invoked by the compiler pipeline
// itself — per the spec's own Open Question, its purpose reads as a
// diagnostic harness rather than a production execution path, so
// nothing here wires it into Build or into any compiler pass.
func Interpret(prog *Program, pos [3]float32) (color [3]float32, distance float32, err error) {
	scratch := make([]float32, prog.Scratch)
	scratch[1], scratch[2], scratch[3] = pos[0], pos[1], pos[2]

	read := func(arg int32) float32 {
		if idx, ok := DecodeArg(arg); ok {
			if idx < len(scratch) {
				return scratch[idx]
			}
			return 0
		}
		if int(arg) < len(prog.Params) {
			return prog.Params[arg]
		}
		return 0
	}
	readVec := func(arg int32) [3]float32 {
		if idx, ok := DecodeArg(arg); ok {
			return [3]float32{scratch[idx], scratch[idx+1], scratch[idx+2]}
		}
		return [3]float32{prog.Params[arg], prog.Params[arg+1], prog.Params[arg+2]}
	}

	for _, c := range prog.Commands {
		if c.Op == OpEnd {
			color = readVec(c.Args[0])
			distance = read(c.Args[1])
			return color, distance, nil
		}
		if err := step(c, scratch, read, readVec); err != nil {
			return color, distance, err
		}
	}
	return color, distance, fmt.Errorf("cmdstream: program has no END command")
}

func step(c Command, scratch []float32, read func(int32) float32, readVec func(int32) [3]float32) error {
	write := func(i int, v float32) {
		if i < len(c.Outputs) {
			idx := int(c.Outputs[i])
			if idx < len(scratch) {
				scratch[idx] = v
			}
		}
	}
	writeVec := func(i int, v [3]float32) {
		if i < len(c.Outputs) {
			idx := int(c.Outputs[i])
			if idx+2 < len(scratch) {
				scratch[idx], scratch[idx+1], scratch[idx+2] = v[0], v[1], v[2]
			}
		}
	}

	switch c.Op {
	case OpAddScalar:
		write(0, read(c.Args[0])+read(c.Args[1]))
	case OpSubScalar:
		write(0, read(c.Args[0])-read(c.Args[1]))
	case OpMulScalar:
		write(0, read(c.Args[0])*read(c.Args[1]))
	case OpDivScalar:
		write(0, read(c.Args[0])/read(c.Args[1]))
	case OpMinScalar:
		write(0, float32(math.Min(float64(read(c.Args[0])), float64(read(c.Args[1])))))
	case OpMaxScalar:
		write(0, float32(math.Max(float64(read(c.Args[0])), float64(read(c.Args[1])))))
	case OpClampScalar:
		v, lo, hi := read(c.Args[0]), read(c.Args[1]), read(c.Args[2])
		write(0, float32(math.Min(math.Max(float64(v), float64(lo)), float64(hi))))
	case OpAbsScalar:
		write(0, float32(math.Abs(float64(read(c.Args[0])))))
	case OpSqrtScalar:
		write(0, float32(math.Sqrt(float64(read(c.Args[0])))))
	case OpModScalar:
		x, y := read(c.Args[0]), read(c.Args[1])
		write(0, x-y*float32(math.Floor(float64(x/y))))
	case OpLength:
		v := readVec(c.Args[0])
		write(0, float32(math.Sqrt(float64(v[0]*v[0]+v[1]*v[1]+v[2]*v[2]))))
	case OpDot:
		a, b := readVec(c.Args[0]), readVec(c.Args[1])
		write(0, a[0]*b[0]+a[1]*b[1]+a[2]*b[2])
	case OpCross:
		a, b := readVec(c.Args[0]), readVec(c.Args[1])
		writeVec(0, [3]float32{
			a[1]*b[2] - a[2]*b[1],
			a[2]*b[0] - a[0]*b[2],
			a[0]*b[1] - a[1]*b[0],
		})
	case OpAddVector:
		a, b := readVec(c.Args[0]), readVec(c.Args[1])
		writeVec(0, [3]float32{a[0] + b[0], a[1] + b[1], a[2] + b[2]})
	case OpSubVector:
		a, b := readVec(c.Args[0]), readVec(c.Args[1])
		writeVec(0, [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]})
	case OpMulVector:
		a, b := readVec(c.Args[0]), readVec(c.Args[1])
		writeVec(0, [3]float32{a[0] * b[0], a[1] * b[1], a[2] * b[2]})
	case OpComposeVector:
		writeVec(0, [3]float32{read(c.Args[0]), read(c.Args[1]), read(c.Args[2])})
	case OpVectorFromScalar:
		v := read(c.Args[0])
		writeVec(0, [3]float32{v, v, v})
	case OpDecomposeVector:
		v := readVec(c.Args[0])
		write(0, v[0])
		write(1, v[1])
		write(2, v[2])
	case OpBoxMinMax:
		pos, min, max := readVec(c.Args[0]), readVec(c.Args[1]), readVec(c.Args[2])
		var d float32
		for i := 0; i < 3; i++ {
			lo := min[i] - pos[i]
			hi := pos[i] - max[i]
			d += float32(math.Max(0, math.Max(float64(lo), float64(hi))))
		}
		write(0, d)
	default:
		return fmt.Errorf("cmdstream: interpreter has no handler for opcode %s", c.Op)
	}
	return nil
}

// Disassemble renders prog as a human-readable instruction table, one
// row per command, for inspection alongside the kernel backend's text
// output.
func Disassemble(prog *Program) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Op", "Outputs", "Args"})
	for i, c := range prog.Commands {
		t.AppendRow(table.Row{i, c.Op.String(), c.Outputs, c.Args})
	}
	return t.Render()
}
