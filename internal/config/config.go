// Package config stores 4me connection profiles. Non-secret settings live in
// a YAML file; tokens live in the OS keyring.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"gopkg.in/yaml.v3"
)

const (
	serviceName    = "sdk4me"
	defaultProfile = "default"
	profilePrefix  = "profile:"
	configFileName = "config.yaml"

	envKeyringBackend  = "SDK4ME_KEYRING_BACKEND"
	envKeyringPassword = "SDK4ME_KEYRING_PASSWORD"
	envCredentialsDir  = "SDK4ME_CREDENTIALS_DIR"
	envConfigDir       = "SDK4ME_CONFIG_DIR"

	keyringBackendAuto   = "auto"
	keyringBackendFile   = "file"
	keyringBackendSystem = "system"
)

// openKeyring is a package-level function for opening keyrings.
// It can be replaced in tests to use a mock keyring.
var openKeyring = func(cfg keyring.Config) (keyring.Keyring, error) {
	return keyring.Open(cfg)
}

var userConfigDir = os.UserConfigDir

var stdinHasTTY = func() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// SetOpenKeyring allows replacing the keyring opener for testing.
// Returns a cleanup function that restores the original.
func SetOpenKeyring(fn func(keyring.Config) (keyring.Keyring, error)) func() {
	original := openKeyring
	openKeyring = fn
	return func() { openKeyring = original }
}

// Profile holds the non-secret settings of one 4me environment.
type Profile struct {
	Host                  string        `yaml:"host"`
	APIVersion            string        `yaml:"api_version,omitempty"`
	Account               string        `yaml:"account,omitempty"`
	Source                string        `yaml:"source,omitempty"`
	MaxRetryTime          time.Duration `yaml:"max_retry_time,omitempty"`
	BlockAtRateLimit      bool          `yaml:"block_at_rate_limit,omitempty"`
	MaxThrottleTime       time.Duration `yaml:"max_throttle_time,omitempty"`
	ProxyHost             string        `yaml:"proxy_host,omitempty"`
	ProxyPort             int           `yaml:"proxy_port,omitempty"`
	ProxyUser             string        `yaml:"proxy_user,omitempty"`
	CAFile                string        `yaml:"ca_file,omitempty"`
	RaiseAttachmentErrors bool          `yaml:"raise_attachment_errors,omitempty"`
}

// Credentials are kept in the keyring, never in the profile file.
type Credentials struct {
	AccessToken   string `json:"access_token,omitempty"`
	APIToken      string `json:"api_token,omitempty"`
	ProxyPassword string `json:"proxy_password,omitempty"`
}

// File is the on-disk profile file.
type File struct {
	Current  string             `yaml:"current,omitempty"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// ErrNotConfigured is returned when no profile is configured
var ErrNotConfigured = errors.New("4me not configured - run 'sdk4me auth login' first")

// keyringConfig returns the keyring configuration
func keyringConfig() keyring.Config {
	cfg := keyring.Config{
		ServiceName: serviceName,
	}

	backend := keyringBackendMode()
	if backend == keyringBackendSystem {
		return cfg
	}

	configureFileBackend(&cfg)

	// Headless Linux has no secret service; use encrypted file storage.
	if shouldForceFileBackend(runtime.GOOS, backend, os.Getenv("DBUS_SESSION_BUS_ADDRESS")) {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}

	return cfg
}

func keyringBackendMode() string {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envKeyringBackend))) {
	case keyringBackendFile:
		return keyringBackendFile
	case keyringBackendSystem, "os", "native":
		return keyringBackendSystem
	default:
		return keyringBackendAuto
	}
}

func shouldForceFileBackend(goos, backend, dbusAddr string) bool {
	if backend == keyringBackendFile {
		return true
	}
	if backend != keyringBackendAuto {
		return false
	}
	return goos == "linux" && strings.TrimSpace(dbusAddr) == ""
}

func configureFileBackend(cfg *keyring.Config) {
	cfg.FileDir = filepath.Join(baseDir(strings.TrimSpace(os.Getenv(envCredentialsDir))), "keyring")
	cfg.FilePasswordFunc = keyringFilePassword
}

func keyringFilePassword(prompt string) (string, error) {
	if password := os.Getenv(envKeyringPassword); strings.TrimSpace(password) != "" {
		return password, nil
	}
	if !stdinHasTTY() {
		return "", fmt.Errorf("set %s when using file keyring in non-interactive environments", envKeyringPassword)
	}
	return keyring.TerminalPrompt(prompt)
}

// baseDir is override when set, otherwise the per-user config directory.
func baseDir(override string) string {
	if override != "" {
		return override
	}
	if dir, err := userConfigDir(); err == nil && strings.TrimSpace(dir) != "" {
		return filepath.Join(dir, serviceName)
	}
	if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
		return filepath.Join(home, ".config", serviceName)
	}
	return filepath.Join(os.TempDir(), serviceName)
}

// Path is the location of the profile file.
func Path() string {
	return filepath.Join(baseDir(strings.TrimSpace(os.Getenv(envConfigDir))), configFileName)
}

// Load reads the profile file. A missing file is an empty File.
func Load() (*File, error) {
	f := &File{Profiles: map[string]Profile{}}
	data, err := os.ReadFile(Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", Path(), err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", Path(), err)
	}
	if f.Profiles == nil {
		f.Profiles = map[string]Profile{}
	}
	return f, nil
}

// Save writes the profile file, creating its directory.
func (f *File) Save() error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// CurrentName is the active profile name.
func (f *File) CurrentName() string {
	if f.Current == "" {
		return defaultProfile
	}
	return f.Current
}

// Names returns the profile names in order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func profileKey(name string) string {
	if name == "" {
		name = defaultProfile
	}
	return profilePrefix + name
}

// SaveProfile stores the profile settings and its credentials and makes it
// the current profile.
func SaveProfile(name string, profile Profile, creds Credentials) error {
	if name == "" {
		name = defaultProfile
	}

	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := ring.Set(keyring.Item{Key: profileKey(name), Data: data}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	f, err := Load()
	if err != nil {
		return err
	}
	f.Profiles[name] = profile
	f.Current = name
	return f.Save()
}

// LoadProfile returns the settings and credentials of a profile.
func LoadProfile(name string) (Profile, Credentials, error) {
	f, err := Load()
	if err != nil {
		return Profile{}, Credentials{}, err
	}
	if name == "" {
		name = f.CurrentName()
	}
	profile, ok := f.Profiles[name]
	if !ok {
		return Profile{}, Credentials{}, ErrNotConfigured
	}

	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return Profile{}, Credentials{}, fmt.Errorf("failed to open keyring: %w", err)
	}
	item, err := ring.Get(profileKey(name))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return profile, Credentials{}, nil
		}
		return Profile{}, Credentials{}, fmt.Errorf("failed to get credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(item.Data, &creds); err != nil {
		return Profile{}, Credentials{}, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return profile, creds, nil
}

// DeleteProfile removes a profile and its credentials. When it was the
// current profile the first remaining one takes over.
func DeleteProfile(name string) error {
	f, err := Load()
	if err != nil {
		return err
	}
	if name == "" {
		name = f.CurrentName()
	}
	if _, ok := f.Profiles[name]; !ok {
		return ErrNotConfigured
	}

	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}
	if err := ring.Remove(profileKey(name)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}

	delete(f.Profiles, name)
	if f.Current == name {
		f.Current = ""
		if names := f.Names(); len(names) > 0 {
			f.Current = names[0]
		}
	}
	return f.Save()
}

// UseProfile makes an existing profile the current one.
func UseProfile(name string) error {
	f, err := Load()
	if err != nil {
		return err
	}
	if _, ok := f.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found (available: %s)", name, strings.Join(f.Names(), ", "))
	}
	f.Current = name
	return f.Save()
}
