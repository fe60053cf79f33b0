package loader

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"github.com/understudy-io/understudy/bytecode"
	"github.com/understudy-io/understudy/compiler"
	"github.com/understudy-io/understudy/core"
	"github.com/understudy-io/understudy/parser"
	"github.com/understudy-io/understudy/vm"
)

func buildContainer(t *testing.T, src string) (string, []byte) {
	t.Helper()
	node, err := parser.Parse(context.Background(), src)
	require.NoError(t, err)
	unit, err := compiler.Compile(node, &compiler.Config{
		Builtins: vm.BuiltinArities(),
	})
	require.NoError(t, err)
	data, err := bytecode.Marshal(unit)
	require.NoError(t, err)
	return unit.Name(), data
}

func callMethod(t *testing.T, l *Loader, unitName, method string) vm.Value {
	t.Helper()
	ctx := context.Background()
	unit, err := l.Load(ctx, unitName)
	require.NoError(t, err)
	m := vm.New(vm.WithLinker(l))
	result, err := m.Call(ctx, unit, method, nil)
	require.NoError(t, err)
	return result
}

const diskFoo = `unit com.example.Foo

method value() {
  return 7
}
`

const overrideFoo = `unit com.example.Foo

method value() {
  return 42
}
`

func TestUnitPath(t *testing.T) {
	require.Equal(t, "Foo.cunit", UnitPath("Foo"))
	require.Equal(t, "com/example/Foo.cunit", UnitPath("com.example.Foo"))
}

func TestOverrideThenRemove(t *testing.T) {
	name, disk := buildContainer(t, diskFoo)
	_, override := buildContainer(t, overrideFoo)
	fsys := fstest.MapFS{
		UnitPath(name): &fstest.MapFile{Data: disk},
	}
	registry := NewRegistry()
	registry.Install(name, override)

	first := New(WithRegistry(registry), WithResolver(NewFSResolver(fsys)))
	require.Equal(t, vm.IntValue(42), callMethod(t, first, name, "value"))

	require.True(t, registry.Remove(name))
	second := New(WithRegistry(registry), WithResolver(NewFSResolver(fsys)))
	require.Equal(t, vm.IntValue(7), callMethod(t, second, name, "value"))
}

func TestOverrideContainerIsServedExactly(t *testing.T) {
	name, override := buildContainer(t, overrideFoo)
	registry := NewRegistry()
	registry.Install(name, override)

	l := New(WithRegistry(registry))
	unit, err := l.Load(context.Background(), name)
	require.NoError(t, err)
	ex, ok := unit.(*vm.Executable)
	require.True(t, ok)

	// The canonical container encoding makes the round trip exact.
	data, err := bytecode.Marshal(ex.Bytecode())
	require.NoError(t, err)
	require.Equal(t, override, data)
}

func TestLoadIsIdempotentPerInstance(t *testing.T) {
	ctx := context.Background()
	name, disk := buildContainer(t, diskFoo)
	_, override := buildContainer(t, overrideFoo)
	registry := NewRegistry()
	registry.Install(name, disk)

	l := New(WithRegistry(registry))
	first, err := l.Load(ctx, name)
	require.NoError(t, err)

	// Mutating the registry between loads must not change what this
	// instance already resolved.
	registry.Install(name, override)
	second, err := l.Load(ctx, name)
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, vm.IntValue(7), callMethod(t, l, name, "value"))
}

func TestProtectedNamespaceIgnoresOverrides(t *testing.T) {
	ctx := context.Background()
	name, container := buildContainer(t, "unit core.Math\n\nmethod abs(n) {\n  return 0\n}\n")
	require.Equal(t, "core.Math", name)
	registry := NewRegistry()
	registry.Install(name, container)

	l := New(WithRegistry(registry), WithParent(core.NewLibrary()))
	unit, err := l.Load(ctx, name)
	require.NoError(t, err)
	_, ok := unit.(*vm.NativeUnit)
	require.True(t, ok)

	m := vm.New(vm.WithLinker(l))
	result, err := m.Call(ctx, unit, "abs", []vm.Value{vm.IntValue(-5)})
	require.NoError(t, err)
	require.Equal(t, vm.IntValue(5), result)

	// Without a parent the name is unresolvable even though an
	// override is installed.
	orphan := New(WithRegistry(registry))
	_, err = orphan.Load(ctx, name)
	var re *ResolveError
	require.ErrorAs(t, err, &re)
	require.Equal(t, "core.Math", re.Name)
}

func TestProtectedPrefixesAreConfigurable(t *testing.T) {
	ctx := context.Background()
	name, container := buildContainer(t, "unit core.Math\n\nmethod value() {\n  return 1\n}\n")
	registry := NewRegistry()
	registry.Install(name, container)

	l := New(WithRegistry(registry), WithProtected("sys."))
	unit, err := l.Load(ctx, name)
	require.NoError(t, err)
	_, ok := unit.(*vm.Executable)
	require.True(t, ok)

	_, err = l.Load(ctx, "sys.Anything")
	var re *ResolveError
	require.ErrorAs(t, err, &re)
	require.Equal(t, "sys.Anything", re.Name)
}

func TestUnknownUnitName(t *testing.T) {
	ctx := context.Background()

	bare := New(WithRegistry(NewRegistry()))
	_, err := bare.Load(ctx, "does.not.Exist")
	var re *ResolveError
	require.ErrorAs(t, err, &re)
	require.Equal(t, "does.not.Exist", re.Name)
	require.EqualError(t, err, "unit not found: does.not.Exist")

	withFS := New(WithRegistry(NewRegistry()), WithResolver(NewFSResolver(fstest.MapFS{})))
	_, err = withFS.Load(ctx, "does.not.Exist")
	require.ErrorAs(t, err, &re)
	require.Equal(t, "does.not.Exist", re.Name)
	require.EqualError(t, err, "unit not found: does.not.Exist (no resource does/not/Exist.cunit)")
}

func TestResourceFailuresAreDistinct(t *testing.T) {
	ctx := context.Background()
	name := "com.example.Foo"

	tests := []struct {
		op    string
		fsys  fs.FS
		cause error
	}{
		{
			op:    "open",
			fsys:  &stubFS{openErr: fs.ErrPermission},
			cause: fs.ErrPermission,
		},
		{
			op:    "read",
			fsys:  &stubFS{file: &stubFile{readErr: errTruncated}},
			cause: errTruncated,
		},
		{
			op:    "close",
			fsys:  &stubFS{file: &stubFile{data: []byte("junk"), closeErr: errDirty}},
			cause: errDirty,
		},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			registry := NewRegistry()
			l := New(WithRegistry(registry), WithResolver(NewFSResolver(tt.fsys)))
			_, err := l.Load(ctx, name)
			var re *ResourceError
			require.ErrorAs(t, err, &re)
			require.Equal(t, tt.op, re.Op)
			require.Equal(t, name, re.Name)
			require.Equal(t, "com/example/Foo.cunit", re.Path)
			require.ErrorIs(t, err, tt.cause)

			// Failed fetches leave no partial state behind.
			require.Equal(t, 0, registry.Len())
		})
	}
}

func TestResolverResultsAreCachedIntoRegistry(t *testing.T) {
	ctx := context.Background()
	name, disk := buildContainer(t, diskFoo)
	counting := &countingFS{fsys: fstest.MapFS{
		UnitPath(name): &fstest.MapFile{Data: disk},
	}}
	registry := NewRegistry()

	first := New(WithRegistry(registry), WithResolver(NewFSResolver(counting)))
	a, err := first.Load(ctx, name)
	require.NoError(t, err)
	require.Equal(t, 1, counting.opens)

	cached, ok := registry.Lookup(name)
	require.True(t, ok)
	require.Equal(t, disk, cached)

	// A second loader sharing the registry never touches the resource.
	second := New(WithRegistry(registry), WithResolver(NewFSResolver(counting)))
	b, err := second.Load(ctx, name)
	require.NoError(t, err)
	require.Equal(t, 1, counting.opens)
	require.NotSame(t, a, b)
}

func TestMachineLinksThroughLoader(t *testing.T) {
	appSrc := `unit app.Main
uses com.example.Lib

method run() {
  return Lib.value() * 2
}
`
	appName, app := buildContainer(t, appSrc)
	libName, lib := buildContainer(t, "unit com.example.Lib\n\nmethod value() {\n  return 7\n}\n")
	_, mock := buildContainer(t, "unit com.example.Lib\n\nmethod value() {\n  return 42\n}\n")
	fsys := fstest.MapFS{
		UnitPath(appName): &fstest.MapFile{Data: app},
		UnitPath(libName): &fstest.MapFile{Data: lib},
	}
	registry := NewRegistry()

	first := New(WithRegistry(registry), WithResolver(NewFSResolver(fsys)))
	require.Equal(t, vm.IntValue(14), callMethod(t, first, appName, "run"))

	// Installing a mock is seen by fresh loaders but not by instances
	// that already resolved the dependency.
	registry.Install(libName, mock)
	second := New(WithRegistry(registry), WithResolver(NewFSResolver(fsys)))
	require.Equal(t, vm.IntValue(84), callMethod(t, second, appName, "run"))
	require.Equal(t, vm.IntValue(14), callMethod(t, first, appName, "run"))
}

func TestLoadLinked(t *testing.T) {
	ctx := context.Background()
	appName, app := buildContainer(t, "unit app.Main\nuses com.example.Lib\n\nmethod run() {\n  return Lib.value()\n}\n")
	libName, lib := buildContainer(t, "unit com.example.Lib\n\nmethod value() {\n  return 7\n}\n")
	brokenName, broken := buildContainer(t, "unit app.Broken\nuses com.example.Gone\n\nmethod run() {\n  return Gone.value()\n}\n")

	t.Run("resolves dependencies eagerly", func(t *testing.T) {
		counting := &countingFS{fsys: fstest.MapFS{
			UnitPath(appName): &fstest.MapFile{Data: app},
			UnitPath(libName): &fstest.MapFile{Data: lib},
		}}
		l := New(WithRegistry(NewRegistry()), WithResolver(NewFSResolver(counting)))
		_, err := l.LoadLinked(ctx, appName)
		require.NoError(t, err)
		require.Equal(t, 2, counting.opens)

		// The dependency is already resolved on this instance.
		_, err = l.Load(ctx, libName)
		require.NoError(t, err)
		require.Equal(t, 2, counting.opens)
	})

	t.Run("missing dependency fails up front", func(t *testing.T) {
		fsys := fstest.MapFS{
			UnitPath(brokenName): &fstest.MapFile{Data: broken},
		}
		l := New(WithRegistry(NewRegistry()), WithResolver(NewFSResolver(fsys)))
		_, err := l.LoadLinked(ctx, brokenName)
		var re *ResolveError
		require.ErrorAs(t, err, &re)
		require.Equal(t, "com.example.Gone", re.Name)
		require.ErrorContains(t, err, "linking app.Broken")
	})
}

func TestDefineRejectsMismatchedName(t *testing.T) {
	_, container := buildContainer(t, diskFoo)
	registry := NewRegistry()
	registry.Install("com.example.Wrong", container)

	l := New(WithRegistry(registry))
	_, err := l.Load(context.Background(), "com.example.Wrong")
	require.EqualError(t, err, "unit com.example.Wrong resolved to a container declaring com.example.Foo")
}

func TestDefineRejectsCorruptContainer(t *testing.T) {
	registry := NewRegistry()
	registry.Install("com.example.Bad", []byte("not a container"))

	l := New(WithRegistry(registry))
	_, err := l.Load(context.Background(), "com.example.Bad")
	var fe *bytecode.FormatError
	require.ErrorAs(t, err, &fe)
	require.ErrorContains(t, err, "defining unit com.example.Bad")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, 0, r.Len())
	_, ok := r.Lookup("a.B")
	require.False(t, ok)

	data := []byte{1, 2, 3}
	r.Install("a.B", data)
	data[0] = 9
	got, ok := r.Lookup("a.B")
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, got)

	got[1] = 9
	again, ok := r.Lookup("a.B")
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, again)

	r.Install("a.A", []byte{4})
	require.Equal(t, []string{"a.A", "a.B"}, r.Names())
	require.Equal(t, 2, r.Len())

	require.True(t, r.Remove("a.B"))
	require.False(t, r.Remove("a.B"))
	require.Equal(t, 1, r.Len())

	r.Clear()
	require.Equal(t, 0, r.Len())
	require.Empty(t, r.Names())
}

var (
	errTruncated = errors.New("unexpected end of data")
	errDirty     = errors.New("dirty buffer flush failed")
)

type stubFS struct {
	openErr error
	file    *stubFile
}

func (s *stubFS) Open(name string) (fs.File, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.file, nil
}

type stubFile struct {
	data     []byte
	readErr  error
	closeErr error
}

func (f *stubFile) Stat() (fs.FileInfo, error) { return nil, fs.ErrInvalid }

func (f *stubFile) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		if f.readErr != nil {
			return 0, f.readErr
		}
		return 0, io.EOF
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func (f *stubFile) Close() error { return f.closeErr }

type countingFS struct {
	fsys  fs.FS
	opens int
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.opens++
	return c.fsys.Open(name)
}
