package understudy

import (
	"context"
	"io"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/understudy-io/understudy/bytecode"
	"github.com/understudy-io/understudy/core"
	"github.com/understudy-io/understudy/loader"
	"github.com/understudy-io/understudy/mocking"
	"github.com/understudy-io/understudy/toolchain"
	"github.com/understudy-io/understudy/vm"
)

func fixedToolchain() (*toolchain.Toolchain, error) {
	return &toolchain.Toolchain{
		Home:     "/opt/understudy",
		Version:  core.Version,
		Manifest: &toolchain.Manifest{Units: core.Manifest()},
	}, nil
}

func compileUnit(t *testing.T, name, source string) []byte {
	t.Helper()
	container, err := CompileSource(context.Background(), name, source,
		mocking.WithToolchain(fixedToolchain),
		mocking.WithDiagnostics(io.Discard))
	require.NoError(t, err)
	return container
}

const (
	fooOnDisk     = "unit com.example.Foo\n\nmethod value() {\n  return 7\n}\n"
	fooSubstitute = "unit com.example.Foo\n\nmethod value() {\n  return 42\n}\n"
)

func TestMockedUnitWinsOverResources(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(ForgetAll)

	resources := fstest.MapFS{
		"com/example/Foo.cunit": &fstest.MapFile{
			Data: compileUnit(t, "com.example.Foo", fooOnDisk),
		},
	}
	withDisk := loader.WithResolver(loader.NewFSResolver(resources))

	Mock("com.example.Foo", compileUnit(t, "com.example.Foo", fooSubstitute))

	got, err := Call(ctx, "com.example.Foo", "value", nil, withDisk)
	require.NoError(t, err)
	require.Equal(t, vm.IntValue(42), got)

	require.True(t, Forget("com.example.Foo"))
	require.False(t, Forget("com.example.Foo"))

	// A fresh loader now falls back to the resource definition.
	got, err = Call(ctx, "com.example.Foo", "value", nil, withDisk)
	require.NoError(t, err)
	require.Equal(t, vm.IntValue(7), got)
}

func TestMockSourceNeedsNoResources(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(ForgetAll)

	err := MockSource(ctx, "com.example.Ghost",
		"unit com.example.Ghost\n\nmethod value() {\n  return 42\n}\n",
		mocking.WithToolchain(fixedToolchain),
		mocking.WithDiagnostics(io.Discard))
	require.NoError(t, err)

	got, err := Call(ctx, "com.example.Ghost", "value", nil)
	require.NoError(t, err)
	require.Equal(t, vm.IntValue(42), got)
}

func TestUnknownUnit(t *testing.T) {
	ctx := context.Background()

	_, err := Call(ctx, "does.not.Exist", "value", nil)
	var re *loader.ResolveError
	require.ErrorAs(t, err, &re)
	require.Equal(t, "does.not.Exist", re.Name)
	require.EqualError(t, err, "unit not found: does.not.Exist")

	_, err = Call(ctx, "does.not.Exist", "value", nil,
		loader.WithResolver(loader.NewFSResolver(fstest.MapFS{})))
	require.EqualError(t, err,
		"unit not found: does.not.Exist (no resource does/not/Exist.cunit)")
}

func TestCoreUnitsIgnoreOverrides(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(ForgetAll)

	// Even a well-formed container cannot shadow a platform unit.
	Mock("core.Runtime", compileUnit(t, "core.Runtime",
		"unit core.Runtime\n\nmethod version() {\n  return \"fake\"\n}\n"))

	got, err := Call(ctx, "core.Runtime", "version", nil)
	require.NoError(t, err)
	require.Equal(t, vm.StringValue(core.Version), got)
}

func TestCompileSourceUsesDiscoveredToolchain(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, toolchain.WriteHome(home, core.Version, core.Manifest()))
	t.Setenv(toolchain.HomeEnv, home)

	// First use memoizes discovery for the process, so the environment
	// must point at the home before any default compile runs.
	container, err := CompileSource(context.Background(), "com.example.Foo", fooSubstitute)
	require.NoError(t, err)

	decoded, err := bytecode.Unmarshal(container)
	require.NoError(t, err)
	require.Equal(t, core.Version, decoded.CompilerVersion())
}
