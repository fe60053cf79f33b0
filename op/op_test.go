package op

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo(Call)
	require.Equal(t, "CALL", info.Name)
	require.Equal(t, 2, info.OperandCount)
	require.Equal(t, Call, info.Code)
}

func TestGetInfoAllOpcodes(t *testing.T) {
	tests := []struct {
		code     Code
		name     string
		operands int
	}{
		{Nop, "NOP", 0},
		{Call, "CALL", 2},
		{CallUnit, "CALL_UNIT", 2},
		{ReturnValue, "RETURN_VALUE", 0},
		{JumpBackward, "JUMP_BACKWARD", 1},
		{JumpForward, "JUMP_FORWARD", 1},
		{PopJumpForwardIfFalse, "POP_JUMP_FORWARD_IF_FALSE", 1},
		{PopJumpForwardIfTrue, "POP_JUMP_FORWARD_IF_TRUE", 1},
		{LoadConst, "LOAD_CONST", 1},
		{LoadFast, "LOAD_FAST", 1},
		{StoreFast, "STORE_FAST", 1},
		{BinaryOp, "BINARY_OP", 1},
		{CompareOp, "COMPARE_OP", 1},
		{UnaryNegative, "UNARY_NEGATIVE", 0},
		{UnaryNot, "UNARY_NOT", 0},
		{PopTop, "POP_TOP", 0},
		{Nil, "NIL", 0},
		{False, "FALSE", 0},
		{True, "TRUE", 0},
	}
	for _, tt := range tests {
		info := GetInfo(tt.code)
		require.Equal(t, tt.name, info.Name)
		require.Equal(t, tt.operands, info.OperandCount)
		require.Equal(t, tt.code, info.Code)
	}
}

func TestInvalidOpcode(t *testing.T) {
	info := GetInfo(Invalid)
	require.Equal(t, "", info.Name)
	require.Equal(t, 0, info.OperandCount)
}

func TestBinaryOpTypeString(t *testing.T) {
	tests := []struct {
		op       BinaryOpType
		expected string
	}{
		{Add, "+"},
		{Subtract, "-"},
		{Multiply, "*"},
		{Divide, "/"},
		{Modulo, "%"},
		{BinaryOpType(99), ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, tt.op.String())
	}
}

func TestCompareOpTypeString(t *testing.T) {
	tests := []struct {
		op       CompareOpType
		expected string
	}{
		{LessThan, "<"},
		{LessThanOrEqual, "<="},
		{Equal, "=="},
		{NotEqual, "!="},
		{GreaterThan, ">"},
		{GreaterThanOrEqual, ">="},
		{CompareOpType(99), ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, tt.op.String())
	}
}
