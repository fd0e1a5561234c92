package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

// FileStore keeps provider tokens in a single JSON file with 0600
// permissions. It stands in for the platform keychain on headless installs.
type FileStore struct {
	mu     sync.Mutex
	path   string
	tokens map[types.Provider]string
}

func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path:   path,
		tokens: make(map[types.Provider]string),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("reading credential store: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fs.tokens); err != nil {
			return nil, fmt.Errorf("parsing credential store: %w", err)
		}
	}
	return fs, nil
}

func (fs *FileStore) Get(provider types.Provider) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.tokens[provider], nil
}

func (fs *FileStore) Set(provider types.Provider, token string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.tokens[provider] = token
	return fs.flushLocked()
}

func (fs *FileStore) Clear(provider types.Provider) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.tokens, provider)
	return fs.flushLocked()
}

func (fs *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(fs.tokens, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(fs.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(fs.path, data, 0o600)
}

var _ types.CredentialStore = (*FileStore)(nil)
