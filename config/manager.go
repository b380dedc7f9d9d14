package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const configFileName = "config.json"

// Manager owns one JSON config file. Writes are atomic and Watch picks up edits made by hand.
type Manager struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	cfg      Config
	onChange func(old, cur Config)
	watching bool
	// digest of the bytes this manager last wrote, so its own writes do not trigger a reload
	written [sha256.Size]byte
}

type managerOptions struct {
	configPath    string
	initialConfig *Config
	debounce      time.Duration
	logger        *zap.Logger
}

type ManagerOption func(*managerOptions)

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.configPath = path
		}
	}
}

// WithInitialConfig is written when the file does not exist yet.
func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) { o.initialConfig = cfg }
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

func WithLogger(logger *zap.Logger) ManagerOption {
	return func(o *managerOptions) { o.logger = logger }
}

// NewManager loads the config file, creating it from the initial config (or defaults rooted next
// to the file) when missing. Without WithConfigPath the file lives in the user config dir.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	o := managerOptions{debounce: 300 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		o.configPath = p
	}
	if err := os.MkdirAll(filepath.Dir(o.configPath), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	m := &Manager{
		path:     o.configPath,
		debounce: o.debounce,
		logger:   o.logger.With(zap.String("component", "config_manager")),
	}

	cfg, err := readConfigFile(m.path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		cfg = DefaultConfigWithRoot(filepath.Dir(m.path))
		if o.initialConfig != nil {
			cfg = o.initialConfig
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := m.write(*cfg); err != nil {
			return nil, fmt.Errorf("write initial config: %w", err)
		}
	default:
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", m.path, err)
	}
	m.cfg = *cfg
	return m, nil
}

// DefaultConfigPath is <user config dir>/tradecortex/config.json.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "tradecortex", configFileName), nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string { return m.path }

// Update validates cfg, persists it and notifies the watcher callback.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(Changed(m.Get(), cfg)) == 0 {
		return nil
	}
	if err := m.write(cfg); err != nil {
		return err
	}
	m.apply(cfg)
	return nil
}

// Set changes a single field addressed by its json key. value is tried as JSON, then as a
// duration (for *_timeout and *_delay fields), then as a plain string.
func (m *Manager) Set(key, value string) error {
	cur := m.Get()
	fields, err := toFields(cur)
	if err != nil {
		return err
	}
	if _, ok := fields[key]; !ok {
		return fmt.Errorf("unknown config key %q", key)
	}

	var candidates []json.RawMessage
	if json.Valid([]byte(value)) {
		candidates = append(candidates, json.RawMessage(value))
	}
	if d, err := time.ParseDuration(value); err == nil {
		candidates = append(candidates, json.RawMessage(strconv.FormatInt(int64(d), 10)))
	}
	candidates = append(candidates, json.RawMessage(strconv.Quote(value)))

	for _, raw := range candidates {
		fields[key] = raw
		data, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		var next Config
		if err := json.Unmarshal(data, &next); err != nil {
			continue
		}
		return m.Update(next)
	}
	return fmt.Errorf("invalid value %q for %s", value, key)
}

// Changed lists the json keys whose values differ between a and b, sorted.
func Changed(a, b Config) []string {
	fa, errA := toFields(a)
	fb, errB := toFields(b)
	if errA != nil || errB != nil {
		return nil
	}
	var keys []string
	for k, va := range fa {
		if !bytes.Equal(va, fb[k]) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func toFields(cfg Config) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Watch reloads the file when it is edited outside this manager and calls onChange with the
// previous and new config. Invalid edits are logged and ignored. It returns once watching starts.
func (m *Manager) Watch(ctx context.Context, onChange func(old, cur Config)) error {
	m.mu.Lock()
	m.onChange = onChange
	if m.watching {
		m.mu.Unlock()
		return nil
	}
	m.watching = true
	m.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// watch the directory: atomic renames replace the file inode
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	defer func() {
		m.mu.Lock()
		m.watching = false
		m.mu.Unlock()
	}()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(m.path) {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(m.debounce)
		case <-pending:
			pending = nil
			m.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (m *Manager) reload() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		m.logger.Warn("config reload failed", zap.Error(err))
		return
	}
	m.mu.RLock()
	own := sha256.Sum256(data) == m.written
	m.mu.RUnlock()
	if own {
		return
	}

	cfg, err := decodeConfig(m.path, data)
	if err != nil {
		m.logger.Warn("config reload failed", zap.Error(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		m.logger.Warn("config validation failed, keeping previous config", zap.Error(err))
		return
	}
	if keys := Changed(m.Get(), *cfg); len(keys) > 0 {
		m.logger.Info("config reloaded", zap.String("path", m.path), zap.Strings("changed", keys))
		m.apply(*cfg)
	}
}

func (m *Manager) apply(cfg Config) {
	m.mu.Lock()
	old := m.cfg
	m.cfg = cfg
	cb := m.onChange
	m.mu.Unlock()
	if cb != nil {
		cb(old, cfg)
	}
}

func (m *Manager) write(cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(m.path), "cfg-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}

	m.mu.Lock()
	m.written = sha256.Sum256(data)
	m.mu.Unlock()
	return os.Rename(tmp.Name(), m.path)
}

func readConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeConfig(path, data)
}

// decodeConfig starts from defaults so fields added after the file was written keep sane values.
func decodeConfig(path string, data []byte) (*Config, error) {
	cfg := DefaultConfigWithRoot(filepath.Dir(path))
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
