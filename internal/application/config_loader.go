package application

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/attribly/attribution/internal/domain"
	"github.com/attribly/attribution/internal/ports"
)

// ConfigLoader parses, validates, and caches model configurations from YAML
// documents, so collaborators can ship configurations as files without
// re-validating identical content on every load.
//
// Caching is keyed by the SHA256 hash of the source bytes; a cached
// configuration is returned by value and safe to use without copying.
type ConfigLoader struct {
	// validator gates every parsed configuration before it enters the
	// cache; the cache therefore only ever holds valid configurations.
	validator *ConfigValidator
	// cache stores validated configurations indexed by source hash.
	cache map[string]domain.ModelConfiguration
	// cacheMu provides thread-safe access to the cache map.
	cacheMu sync.RWMutex
	// sf collapses concurrent loads of identical content into one parse.
	sf singleflight.Group
}

// NewConfigLoader creates a ConfigLoader with an empty cache. A nil
// validator selects the default bounds.
func NewConfigLoader(validator *ConfigValidator) *ConfigLoader {
	if validator == nil {
		validator = NewConfigValidator()
	}
	return &ConfigLoader{
		validator: validator,
		cache:     make(map[string]domain.ModelConfiguration),
	}
}

// LoadFromFile loads a model configuration from a YAML file. A missing file
// surfaces ports.ErrConfigNotFound through a *ports.ConfigError.
func (l *ConfigLoader) LoadFromFile(path string) (domain.ModelConfiguration, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ModelConfiguration{}, ports.NewConfigError(path, ports.ErrConfigNotFound)
		}
		return domain.ModelConfiguration{}, ports.NewConfigError(path, err)
	}
	defer f.Close()

	cfg, err := l.Load(f)
	if err != nil {
		return domain.ModelConfiguration{}, fmt.Errorf("loading %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads a YAML model configuration from r, validates it, and caches
// the result by content hash. Unknown YAML fields are rejected to catch
// typos in configuration keys.
func (l *ConfigLoader) Load(r io.Reader) (domain.ModelConfiguration, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.ModelConfiguration{}, fmt.Errorf("reading configuration: %w", err)
	}

	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	l.cacheMu.RLock()
	cached, ok := l.cache[key]
	l.cacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := l.sf.Do(key, func() (any, error) {
		var cfg domain.ModelConfiguration
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parsing model configuration: %w", err)
		}

		if err := l.validator.Validate(cfg); err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[key] = cfg
		l.cacheMu.Unlock()
		return cfg, nil
	})
	if err != nil {
		return domain.ModelConfiguration{}, err
	}
	return v.(domain.ModelConfiguration), nil
}

// CacheSize returns the number of cached configurations, for tests and
// introspection.
func (l *ConfigLoader) CacheSize() int {
	l.cacheMu.RLock()
	defer l.cacheMu.RUnlock()
	return len(l.cache)
}
