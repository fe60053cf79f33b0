package toolchain

import (
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	defaultOnce sync.Once
	defaultTC   *Toolchain
	defaultErr  error
)

// Default discovers the system toolchain once and memoizes the outcome,
// including failures, for the process lifetime. There is nothing to
// tear down: a discovered toolchain holds no open resources.
func Default() (*Toolchain, error) {
	defaultOnce.Do(func() {
		defaultTC, defaultErr = Discover(System())
		if defaultErr != nil {
			log.Debug().Err(defaultErr).Msg("toolchain discovery failed")
			return
		}
		log.Debug().
			Str("home", defaultTC.Home).
			Str("version", defaultTC.Version).
			Msg("discovered toolchain")
	})
	return defaultTC, defaultErr
}
