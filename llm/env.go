package llm

import (
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// The environment map lets hosts inject credentials without touching the
// process environment: values set here win over os.Getenv. Providers look
// keys up through LookupEnv at model construction, never directly.
var (
	envMu       sync.RWMutex
	envOverride = map[string]string{}
)

// SetEnv sets an override for key, e.g. "OPENAI_API_KEY". Intended to be
// called once at startup by the host.
func SetEnv(key, value string) {
	envMu.Lock()
	defer envMu.Unlock()
	envOverride[key] = value
}

// LookupEnv returns the override for key if one was set, falling back to the
// OS environment.
func LookupEnv(key string) string {
	envMu.RLock()
	v, ok := envOverride[key]
	envMu.RUnlock()
	if ok {
		return v
	}
	return os.Getenv(key)
}

// LoadEnvFile reads a .env file into the environment map. Existing overrides
// are preserved; the OS environment is not modified.
func LoadEnvFile(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		return err
	}
	envMu.Lock()
	defer envMu.Unlock()
	for k, v := range values {
		if _, exists := envOverride[k]; !exists {
			envOverride[k] = v
		}
	}
	return nil
}
