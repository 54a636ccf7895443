package cmdstream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillfield/implicore/assembly"
	"github.com/quillfield/implicore/backend/cmdstream"
)

func TestInterpretMatchesLengthMinusOne(t *testing.T) {
	asm := assembly.New()
	model := buildModel(1)
	asm.InsertFunction(model)
	asm.SetAssemblyFunction(1)

	prog, err := cmdstream.Build(asm, nil)
	require.NoError(t, err)

	color, dist, err := cmdstream.Interpret(prog, [3]float32{3, 4, 0})
	require.NoError(t, err)
	assert.InDelta(t, float32(4), dist, 1e-5)
	assert.InDelta(t, float32(1), color[0], 1e-5)
}

func TestDisassembleRendersATable(t *testing.T) {
	asm := assembly.New()
	model := buildModel(1)
	asm.InsertFunction(model)
	asm.SetAssemblyFunction(1)

	prog, err := cmdstream.Build(asm, nil)
	require.NoError(t, err)

	out := cmdstream.Disassemble(prog)
	assert.Contains(t, out, "LENGTH")
	assert.Contains(t, out, "END")
}
