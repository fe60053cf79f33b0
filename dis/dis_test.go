package dis

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/understudy-io/understudy/bytecode"
	"github.com/understudy-io/understudy/compiler"
	"github.com/understudy-io/understudy/core"
	"github.com/understudy-io/understudy/op"
	"github.com/understudy-io/understudy/parser"
	"github.com/understudy-io/understudy/vm"
)

func compile(t *testing.T, src string, cfg *compiler.Config) *bytecode.Unit {
	t.Helper()
	node, err := parser.Parse(context.Background(), src)
	require.NoError(t, err)
	unit, err := compiler.Compile(node, cfg)
	require.NoError(t, err)
	return unit
}

func TestMethodDisassembly(t *testing.T) {
	// Disable colors for consistent test output.
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	unit := compile(t, "unit t.U\n\nmethod f() {\n  return 40 + 2\n}\n", nil)
	method, ok := unit.Method("f")
	require.True(t, ok)

	instructions, err := Disassemble(unit, method)
	require.NoError(t, err)

	var buf bytes.Buffer
	Print(instructions, &buf)

	expected := strings.TrimSpace(`
+--------+--------------+----------+------+
| OFFSET |    OPCODE    | OPERANDS | INFO |
+--------+--------------+----------+------+
|      0 | LOAD_CONST   |        0 | 40   |
|      2 | LOAD_CONST   |        1 | 2    |
|      4 | BINARY_OP    |        1 | +    |
|      6 | RETURN_VALUE |          |      |
+--------+--------------+----------+------+
`)
	require.Equal(t, expected+"\n", buf.String())
}

func TestAnnotations(t *testing.T) {
	src := "unit t.Calc\nuses core.Math\n\nmethod twice(n) {\n  return Math.abs(n) + n\n}\n"
	unit := compile(t, src, &compiler.Config{
		Builtins: vm.BuiltinArities(),
		Units:    core.Manifest(),
	})
	method, ok := unit.Method("twice")
	require.True(t, ok)

	instructions, err := Disassemble(unit, method)
	require.NoError(t, err)
	require.Equal(t, []Instruction{
		{Offset: 0, Name: "LOAD_FAST", Opcode: op.LoadFast,
			Operands: []op.Code{0}, Annotation: "n"},
		{Offset: 2, Name: "CALL_UNIT", Opcode: op.CallUnit,
			Operands: []op.Code{0, 1}, Annotation: "core.Math.abs/1"},
		{Offset: 5, Name: "LOAD_FAST", Opcode: op.LoadFast,
			Operands: []op.Code{0}, Annotation: "n"},
		{Offset: 7, Name: "BINARY_OP", Opcode: op.BinaryOp,
			Operands: []op.Code{1}, Annotation: "+"},
		{Offset: 9, Name: "RETURN_VALUE", Opcode: op.ReturnValue,
			Operands: []op.Code{}, Annotation: ""},
	}, instructions)
}

func TestBuiltinCallAnnotation(t *testing.T) {
	src := "unit t.U\n\nmethod f() {\n  return len(\"abc\")\n}\n"
	unit := compile(t, src, &compiler.Config{Builtins: vm.BuiltinArities()})
	method, ok := unit.Method("f")
	require.True(t, ok)

	instructions, err := Disassemble(unit, method)
	require.NoError(t, err)
	require.Len(t, instructions, 3)
	require.Equal(t, "CALL", instructions[1].Name)
	require.Equal(t, "len/1", instructions[1].Annotation)
}

func TestFprintListsEveryMethod(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	src := "unit t.U\n\nmethod a() {\n  return 1\n}\n\nmethod b(x) {\n  return x\n}\n"
	unit := compile(t, src, nil)

	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, unit))

	out := buf.String()
	require.Contains(t, out, "method a/0:")
	require.Contains(t, out, "method b/1:")
	require.Contains(t, out, "| OFFSET |")
}
