// Package dis supports analysis of compiled units by disassembling their
// methods. It works with the opcodes defined in the `op` package and uses
// the InstructionIter type from the `bytecode` package.
package dis

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/understudy-io/understudy/bytecode"
	"github.com/understudy-io/understudy/op"
)

// Instruction represents a single bytecode instruction and its operands.
type Instruction struct {
	Offset     int
	Name       string
	Opcode     op.Code
	Operands   []op.Code
	Annotation string
}

// Disassemble returns a parsed representation of one method of a unit.
// Operand indexes are resolved into annotations against the unit's
// constant pool and the method's local names.
func Disassemble(unit *bytecode.Unit, method *bytecode.Method) ([]Instruction, error) {
	var instructions []Instruction
	var offset int
	iter := bytecode.NewInstructionIter(method)
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		info := op.GetInfo(val[0])
		if info.Name == "" {
			return nil, fmt.Errorf("unknown opcode %d at offset %d", val[0], offset)
		}
		if len(val) < info.OperandCount+1 {
			return nil, fmt.Errorf("truncated %s instruction at offset %d",
				info.Name, offset)
		}
		annotation, err := annotate(unit, method, val)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, Instruction{
			Offset:     offset,
			Name:       info.Name,
			Opcode:     val[0],
			Operands:   val[1:],
			Annotation: annotation,
		})
		offset += len(val)
	}
	return instructions, nil
}

func annotate(unit *bytecode.Unit, method *bytecode.Method, val []op.Code) (string, error) {
	switch val[0] {
	case op.LoadConst:
		c, err := constantAt(unit, int(val[1]))
		if err != nil {
			return "", err
		}
		return c.String(), nil
	case op.LoadFast, op.StoreFast:
		return localName(method, int(val[1]))
	case op.BinaryOp:
		return op.BinaryOpType(val[1]).String(), nil
	case op.CompareOp:
		return op.CompareOpType(val[1]).String(), nil
	case op.Call:
		c, err := constantAt(unit, int(val[1]))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s/%d", c.Str, int(val[2])), nil
	case op.CallUnit:
		c, err := constantAt(unit, int(val[1]))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s.%s/%d", c.Unit, c.Method, int(val[2])), nil
	}
	return "", nil
}

func localName(method *bytecode.Method, index int) (string, error) {
	if method.NumLocals() <= index {
		return "", fmt.Errorf("local variable index out of range: %d", index)
	}
	if name := method.LocalNameAt(index); name != "" {
		return name, nil
	}
	// Fall back to showing the index if no name is stored.
	return fmt.Sprintf("local_%d", index), nil
}

func constantAt(unit *bytecode.Unit, index int) (bytecode.Constant, error) {
	if unit.ConstantCount() <= index {
		return bytecode.Constant{}, fmt.Errorf("constant index out of range: %d", index)
	}
	return unit.ConstantAt(index), nil
}

var (
	opcodeColor = color.New(color.Bold)
	infoColor   = color.New(color.FgCyan)
)

// Print writes a table of the given instructions to the given writer.
// Color output follows the fatih/color global setting.
func Print(instructions []Instruction, writer io.Writer) {
	header := []string{"OFFSET", "OPCODE", "OPERANDS", "INFO"}
	rows := make([][]string, len(instructions))
	for i, instr := range instructions {
		rows[i] = []string{
			fmt.Sprintf("%d", instr.Offset),
			instr.Name,
			formatOperands(instr.Operands),
			instr.Annotation,
		}
	}
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	border := tableBorder(widths)
	fmt.Fprintln(writer, border)
	fmt.Fprintln(writer, renderHeader(header, widths))
	fmt.Fprintln(writer, border)
	for _, row := range rows {
		fmt.Fprintln(writer, renderRow(row, widths))
	}
	fmt.Fprintln(writer, border)
}

// Fprint disassembles every method of the unit in declaration order and
// writes the result to the writer.
func Fprint(writer io.Writer, unit *bytecode.Unit) error {
	for i := 0; i < unit.MethodCount(); i++ {
		method := unit.MethodAt(i)
		if i > 0 {
			fmt.Fprintln(writer)
		}
		fmt.Fprintf(writer, "method %s/%d:\n", method.Name(), method.NumParams())
		instructions, err := Disassemble(unit, method)
		if err != nil {
			return err
		}
		Print(instructions, writer)
	}
	return nil
}

func formatOperands(ops []op.Code) string {
	var sb strings.Builder
	for i, operand := range ops {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d", operand)
	}
	return sb.String()
}

// Cells are padded before any color is applied, so escape sequences do
// not disturb the column widths.
func renderRow(row []string, widths []int) string {
	cells := []string{
		padLeft(row[0], widths[0]),
		opcodeColor.Sprint(padRight(row[1], widths[1])),
		padLeft(row[2], widths[2]),
		infoColor.Sprint(padRight(row[3], widths[3])),
	}
	return "| " + strings.Join(cells, " | ") + " |"
}

func renderHeader(header []string, widths []int) string {
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = center(h, widths[i]+2)
	}
	return "|" + strings.Join(cells, "|") + "|"
}

func tableBorder(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("-", w+2)
	}
	return "+" + strings.Join(parts, "+") + "+"
}

func center(s string, width int) string {
	pad := width - len(s)
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}

func padLeft(s string, width int) string {
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	return s + strings.Repeat(" ", width-len(s))
}
