// Package config holds the persisted, JSON-backed configuration this
// module's host and headset roles load at startup, plus the negotiated
// Settings snapshot exchanged over the control channel at handshake time
// and on settings_changed.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/nexusvr/corevr/internal/logx"
)

var log = logx.New("config")

// KnownServer is one entry of the "known_servers" list persisted on the
// headset side: a previously-seen host, remembered by cookie so
// reconnecting does not require re-pairing.
type KnownServer struct {
	Cookie      string `json:"cookie"`
	Name        string `json:"name"`
	Hostname    string `json:"hostname"`
	Port        int    `json:"port"`
	TCPOnly     bool   `json:"tcp_only"`
	Autoconnect bool   `json:"autoconnect"`
	Manual      bool   `json:"manual"`
}

// Config is the persisted, user-editable configuration file.
type Config struct {
	KnownServers []KnownServer `json:"known_servers"`

	MinimumRefreshRate   float32 `json:"minimum_refresh_rate"`
	PreferredRefreshRate float32 `json:"preferred_refresh_rate"`

	ResolutionScale     float32 `json:"resolution_scale"`
	PassthroughEnabled  bool    `json:"passthrough_enabled"`
	MicUnprocessedAudio bool    `json:"mic_unprocessed_audio"`

	HandTrackingEnabled bool `json:"hand_tracking_enabled"`
	BodyTrackingEnabled bool `json:"body_tracking_enabled"`
	EyeTrackingEnabled  bool `json:"eye_tracking_enabled"`
	FaceTrackingEnabled bool `json:"face_tracking_enabled"`

	CodecPreference string `json:"codec_preference"` // "h264" | "h265" | "av1"
	BitrateBps      uint32 `json:"bitrate_bps"`

	FirstRun bool   `json:"first_run"`
	Locale   string `json:"locale"`
}

// Default returns the configuration used when no file exists yet.
func Default() Config {
	return Config{
		KnownServers:         nil,
		MinimumRefreshRate:   72,
		PreferredRefreshRate: 90,
		ResolutionScale:      1.0,
		PassthroughEnabled:   false,
		MicUnprocessedAudio:  false,
		HandTrackingEnabled:  true,
		BodyTrackingEnabled:  false,
		EyeTrackingEnabled:   true,
		FaceTrackingEnabled:  false,
		CodecPreference:      "h265",
		BitrateBps:           50_000_000,
		FirstRun:             true,
		Locale:               "en",
	}
}

// Settings is the negotiated snapshot sent to the headset at handshake and
// re-sent on settings_changed. It is derived from Config but kept separate
// because it is an immutable value handed to subsystems at construction,
// not the live config file.
type Settings struct {
	BitrateBps           uint32
	MinimumRefreshRate   float32
	PreferredRefreshRate float32
	CodecPreference      string
	FoveationOverride    bool
	HidForwarding        bool
	HandTrackingEnabled  bool
	BodyTrackingEnabled  bool
	EyeTrackingEnabled   bool
	FaceTrackingEnabled  bool
}

// Snapshot derives a Settings value from the current Config.
func (c Config) Snapshot() Settings {
	return Settings{
		BitrateBps:           c.BitrateBps,
		MinimumRefreshRate:   c.MinimumRefreshRate,
		PreferredRefreshRate: c.PreferredRefreshRate,
		CodecPreference:      c.CodecPreference,
		FoveationOverride:    false,
		HidForwarding:        true,
		HandTrackingEnabled:  c.HandTrackingEnabled,
		BodyTrackingEnabled:  c.BodyTrackingEnabled,
		EyeTrackingEnabled:   c.EyeTrackingEnabled,
		FaceTrackingEnabled:  c.FaceTrackingEnabled,
	}
}

// Path returns the config file path under dir (the OS user-config
// directory resolved by the caller), e.g. via os.UserConfigDir().
func Path(dir string) string {
	return filepath.Join(dir, "corevr", "config.json")
}

// CookiePath returns the path of the file storing this installation's
// 32-character random server identity.
func CookiePath(dir string) string {
	return filepath.Join(dir, "corevr", "cookie")
}

// Load reads the config file at path, falling back to Default() if it does
// not exist.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// Save writes c to path, creating parent directories as needed.
func Save(path string, c Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// LoadOrCreateCookie reads the server identity cookie at path, generating
// and persisting a new 32-character random one on first run.
func LoadOrCreateCookie(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		return string(b), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("read cookie %s: %w", path, err)
	}

	cookie := uuid.New().String() + uuid.New().String()
	cookie = cookie[:32]

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create cookie dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(cookie), 0o600); err != nil {
		return "", fmt.Errorf("write cookie %s: %w", path, err)
	}
	return cookie, nil
}

// Watcher hot-reloads the config file on external edits and publishes the
// new Config snapshot to subscribers, favoring explicit construction and
// an immutable snapshot per update over a mutable global.
type Watcher struct {
	path string

	mu        sync.RWMutex
	current   Config
	watcher   *fsnotify.Watcher
	listeners []chan Config
	closed    chan struct{}
}

// NewWatcher loads path (or defaults) and starts watching it for writes.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fw.Close()
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	w := &Watcher{
		path:    path,
		current: cfg,
		watcher: fw,
		closed:  make(chan struct{}),
	}
	go w.watchLoop()
	return w, nil
}

// Current returns the most recently loaded Config snapshot.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Subscribe returns a channel that receives every reloaded Config.
// The channel is never closed by Watcher; callers select on Close.
func (w *Watcher) Subscribe() <-chan Config {
	ch := make(chan Config, 1)
	w.mu.Lock()
	w.listeners = append(w.listeners, ch)
	w.mu.Unlock()
	return ch
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.closed:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				log.Printf("hot reload failed: %v", err)
				continue
			}
			w.mu.Lock()
			w.current = cfg
			listeners := append([]chan Config(nil), w.listeners...)
			w.mu.Unlock()
			for _, ch := range listeners {
				select {
				case ch <- cfg:
				default:
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher error: %v", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.closed)
	return w.watcher.Close()
}
