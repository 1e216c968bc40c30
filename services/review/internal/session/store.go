package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Keys under which credentials are stored.
const (
	KeyAuthToken = "session.auth_token"
	KeyPushToken = "session.push_token"
)

// MemoryStore keeps credentials in memory.
type MemoryStore struct {
	mu    sync.Mutex
	creds Credentials
}

// NewMemoryStore returns a store seeded with creds.
func NewMemoryStore(creds Credentials) *MemoryStore {
	return &MemoryStore{creds: creds}
}

func (m *MemoryStore) Load(context.Context) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, nil
}

func (m *MemoryStore) Save(_ context.Context, c Credentials) error {
	m.mu.Lock()
	m.creds = c
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	return m.Save(context.Background(), Credentials{})
}

// FileStore keeps credentials in the CLI's viper config file, which is
// written with owner-only permissions.
type FileStore struct {
	v    *viper.Viper
	path string
}

// NewFileStore stores credentials in the YAML file at path using v.
func NewFileStore(v *viper.Viper, path string) *FileStore {
	return &FileStore{v: v, path: path}
}

func (f *FileStore) Load(context.Context) (Credentials, error) {
	f.v.SetConfigFile(f.path)
	if err := f.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Credentials{}, fmt.Errorf("read %s: %w", f.path, err)
		}
	}
	return Credentials{
		AuthToken: f.v.GetString(KeyAuthToken),
		PushToken: f.v.GetString(KeyPushToken),
	}, nil
}

func (f *FileStore) Save(_ context.Context, c Credentials) error {
	f.v.Set(KeyAuthToken, c.AuthToken)
	f.v.Set(KeyPushToken, c.PushToken)
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := f.v.WriteConfigAs(f.path); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return os.Chmod(f.path, 0o600)
}

func (f *FileStore) Clear(ctx context.Context) error {
	return f.Save(ctx, Credentials{})
}
