package loader

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"

	"github.com/understudy-io/understudy/bytecode"
)

// Resolver locates compiled unit containers for names that have no
// installed override.
type Resolver interface {
	// ResolveUnit returns the container bytes for the named unit. A
	// *ResolveError reports that no container exists for the name; a
	// *ResourceError reports a container that exists but could not be
	// read.
	ResolveUnit(ctx context.Context, name string) ([]byte, error)
}

// UnitPath translates a fully qualified unit name into the resource
// path of its compiled container. Dots become path separators and the
// container extension is appended, so "com.example.Foo" maps to
// "com/example/Foo.cunit".
func UnitPath(name string) string {
	return strings.ReplaceAll(name, ".", "/") + bytecode.Ext
}

// FSResolver resolves unit containers from a file system, typically the
// output directory of a build.
type FSResolver struct {
	fsys fs.FS
}

// NewFSResolver returns a resolver that reads containers from fsys.
func NewFSResolver(fsys fs.FS) *FSResolver {
	return &FSResolver{fsys: fsys}
}

// ResolveUnit implements Resolver. Open, read and close failures are
// reported as distinct resource errors; only a missing file counts as
// not found.
func (r *FSResolver) ResolveUnit(ctx context.Context, name string) ([]byte, error) {
	path := UnitPath(name)
	f, err := r.fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ResolveError{Name: name, Path: path}
		}
		return nil, &ResourceError{Op: "open", Name: name, Path: path, Err: err}
	}
	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, &ResourceError{Op: "read", Name: name, Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return nil, &ResourceError{Op: "close", Name: name, Path: path, Err: err}
	}
	return data, nil
}
