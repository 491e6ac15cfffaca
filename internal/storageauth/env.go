package storageauth

import (
	"fmt"
	"os"
	"sync"
)

// processEnvMu serializes WithProcessEnv calls across the whole process.
// Some storage backends (GDAL's virtual filesystem drivers in
// particular) read credentials from process environment variables
// rather than accepting them as call parameters, so a token can only be
// handed to them by mutating global state for the duration of the call.
var processEnvMu sync.Mutex

// WithProcessEnv sets the given environment variables, runs fn, then
// restores whatever was there before — holding processEnvMu for the
// whole operation so concurrent callers using different credentials
// never interleave. Every caller pays this serialization cost; it only
// matters for the narrow set of readers that need process-env
// credentials instead of request-scoped ones.
func WithProcessEnv(vars map[string]string, fn func() error) error {
	processEnvMu.Lock()
	defer processEnvMu.Unlock()

	prior := make(map[string]*string, len(vars))
	for k := range vars {
		if v, ok := os.LookupEnv(k); ok {
			val := v
			prior[k] = &val
		} else {
			prior[k] = nil
		}
	}

	defer func() {
		for k, v := range prior {
			if v == nil {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, *v)
			}
		}
	}()

	for k, v := range vars {
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("storageauth: setting %s: %w", k, err)
		}
	}

	return fn()
}
