package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/understudy-io/understudy/op"
)

func TestMarshalRoundTrip(t *testing.T) {
	original := testUnit()
	data, err := Marshal(original)
	require.NoError(t, err)
	require.Greater(t, len(data), 5)
	require.Equal(t, []byte("UNIT"), data[:4])
	require.Equal(t, FormatVersion, data[4])

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, original.Name(), decoded.Name())
	require.Equal(t, original.ID(), decoded.ID())
	require.Equal(t, original.CompilerVersion(), decoded.CompilerVersion())
	require.Equal(t, original.Filename(), decoded.Filename())
	require.Equal(t, original.Uses(), decoded.Uses())
	require.Equal(t, original.ConstantCount(), decoded.ConstantCount())
	require.Equal(t, original.ConstantAt(0), decoded.ConstantAt(0))
	require.Equal(t, original.MethodCount(), decoded.MethodCount())

	add, ok := decoded.Method("add")
	require.True(t, ok)
	require.Equal(t, 2, add.NumParams())
	require.Equal(t, []string{"a", "b"}, add.ParamNames())
	require.Equal(t, 7, add.InstructionCount())
	for i := 0; i < add.InstructionCount(); i++ {
		originalAdd, _ := original.Method("add")
		require.Equal(t, originalAdd.InstructionAt(i), add.InstructionAt(i))
	}
}

func TestMarshalDeterministic(t *testing.T) {
	unit := testUnit()
	first, err := Marshal(unit)
	require.NoError(t, err)
	second, err := Marshal(unit)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestUnmarshalRejectsBadContainers(t *testing.T) {
	valid, err := Marshal(testUnit())
	require.NoError(t, err)

	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"empty", nil, "container too short"},
		{"short", []byte("UNI"), "container too short"},
		{"bad magic", append([]byte("JUNK"), valid[4:]...), "bad magic bytes"},
		{
			"bad version",
			append([]byte{'U', 'N', 'I', 'T', 99}, valid[5:]...),
			"unsupported format version 99",
		},
		{
			"garbage body",
			append([]byte{'U', 'N', 'I', 'T', FormatVersion}, 0xff, 0xfe, 0xfd),
			"invalid container encoding",
		},
		{"truncated body", valid[:len(valid)-3], "invalid container encoding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			require.Error(t, err)
			require.ErrorContains(t, err, tt.expected)
			var formatErr *FormatError
			require.ErrorAs(t, err, &formatErr)
		})
	}
}

func TestUnmarshalVerifies(t *testing.T) {
	// A structurally valid container whose instruction stream references a
	// constant that does not exist.
	bad := NewUnit(UnitParams{
		Name: "demo.Corrupt",
		Methods: []*Method{
			NewMethod(MethodParams{
				Name:         "m",
				Instructions: []op.Code{op.LoadConst, 7, op.ReturnValue},
			}),
		},
	})
	data, err := Marshal(bad)
	require.NoError(t, err)

	_, err = Unmarshal(data)
	require.Error(t, err)
	require.ErrorContains(t, err, "constant index 7 out of range")
}
