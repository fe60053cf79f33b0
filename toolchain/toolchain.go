// Package toolchain locates the platform toolchain that compilation
// depends on: an installed home directory carrying a version marker and
// the core unit manifest.
//
// Discovery prefers the home named by the UNDERSTUDY_HOME environment
// variable. When that fails on Windows, a conventional install root is
// scanned for versioned installation directories and the environment is
// pointed at the first one that works. Elsewhere there is no fallback
// search and discovery fails immediately.
package toolchain

import (
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// HomeEnv is the environment variable pointing at a toolchain home.
	HomeEnv = "UNDERSTUDY_HOME"

	// WindowsInstallRoot is scanned for installations when HomeEnv does
	// not name a usable home on Windows.
	WindowsInstallRoot = `C:\Program Files\Understudy`

	// candidatePrefix matches versioned installation directories under
	// the install root.
	candidatePrefix = "understudy-1."
)

// Toolchain is a discovered installation.
type Toolchain struct {
	// Home is the installation directory.
	Home string

	// Version is the installed platform version, from the VERSION file.
	Version string

	// Manifest catalogs the core units this installation provides.
	Manifest *Manifest
}

// Environment is the slice of the process environment that discovery
// reads and writes. It exists so discovery stays a pure function that
// tests can drive with a fake.
type Environment interface {
	GOOS() string
	Getenv(key string) string
	Setenv(key, value string) error
	ReadFile(path string) ([]byte, error)
	ReadDir(path string) ([]fs.DirEntry, error)
}

type systemEnv struct{}

func (systemEnv) GOOS() string                            { return runtime.GOOS }
func (systemEnv) Getenv(key string) string                { return os.Getenv(key) }
func (systemEnv) Setenv(key, value string) error          { return os.Setenv(key, value) }
func (systemEnv) ReadFile(path string) ([]byte, error)    { return os.ReadFile(path) }
func (systemEnv) ReadDir(path string) ([]fs.DirEntry, error) { return os.ReadDir(path) }

// System returns the real process environment.
func System() Environment {
	return systemEnv{}
}

// Discover locates a toolchain in the given environment. The home named
// by UNDERSTUDY_HOME wins when it is usable. On Windows a failed probe
// falls back to scanning the conventional install root; each candidate
// is tried by pointing UNDERSTUDY_HOME at it and probing again, so a
// successful fallback leaves the environment aimed at the working home.
// All failures are *Error values with cause-specific messages.
func Discover(env Environment) (*Toolchain, error) {
	var probeErr error
	if home := env.Getenv(HomeEnv); home != "" {
		tc, err := probe(env, home)
		if err == nil {
			return tc, nil
		}
		probeErr = err
	}
	if env.GOOS() != "windows" {
		return nil, &Error{
			message: fmt.Sprintf("no toolchain at %s and no fallback search on %s",
				HomeEnv, env.GOOS()),
			cause: probeErr,
		}
	}
	entries, err := env.ReadDir(WindowsInstallRoot)
	if err != nil {
		return nil, &Error{
			message: fmt.Sprintf("install root %s does not exist", WindowsInstallRoot),
			cause:   err,
		}
	}
	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), candidatePrefix) {
			candidates = append(candidates, entry.Name())
		}
	}
	if len(candidates) == 0 {
		return nil, &Error{
			message: fmt.Sprintf("no %s* installations under %s",
				candidatePrefix, WindowsInstallRoot),
		}
	}
	sort.Strings(candidates)
	for _, name := range candidates {
		home := WindowsInstallRoot + `\` + name
		if err := env.Setenv(HomeEnv, home); err != nil {
			continue
		}
		if tc, err := probe(env, env.Getenv(HomeEnv)); err == nil {
			return tc, nil
		}
	}
	return nil, &Error{
		message: fmt.Sprintf("no candidate installation under %s provides a working toolchain",
			WindowsInstallRoot),
	}
}

// probe checks that home holds a complete installation: a non-empty
// VERSION file and a parsable core manifest listing at least one unit.
func probe(env Environment, home string) (*Toolchain, error) {
	sep := "/"
	if env.GOOS() == "windows" {
		sep = `\`
	}
	versionPath := home + sep + "VERSION"
	raw, err := env.ReadFile(versionPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", versionPath, err)
	}
	version := strings.TrimSpace(string(raw))
	if version == "" {
		return nil, fmt.Errorf("%s is empty", versionPath)
	}
	manifestPath := home + sep + "lib" + sep + ManifestName
	raw, err = env.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", manifestPath, err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", manifestPath, err)
	}
	if len(manifest.Units) == 0 {
		return nil, fmt.Errorf("%s lists no units", manifestPath)
	}
	return &Toolchain{Home: home, Version: version, Manifest: &manifest}, nil
}
