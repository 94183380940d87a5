package session

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

// CredentialKey is the fixed key the credential is persisted under.
const CredentialKey = "rag_password"

var (
	ErrPassphraseRequired = errors.New("credential store is encrypted: passphrase required")
	ErrCorruptStore       = errors.New("credential store is corrupt")
)

// Store is durable key/value storage surviving process restarts.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// DefaultStorePath returns the per-user location of the credential file.
func DefaultStorePath() string {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, _ := os.UserHomeDir()
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "RagConsole", "storage.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ragconsole", "storage.json")
}

type fileData struct {
	Salt   string            `json:"salt,omitempty"`
	Values map[string]string `json:"values"`
}

// FileStore keeps values in a single JSON file with owner-only permissions.
// With a passphrase, values are sealed with secretbox under an argon2id key.
type FileStore struct {
	mu         sync.Mutex
	path       string
	passphrase string
}

func NewFileStore(path, passphrase string) *FileStore {
	if path == "" {
		path = DefaultStorePath()
	}
	return &FileStore{path: path, passphrase: passphrase}
}

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return "", false, err
	}
	raw, ok := data.Values[key]
	if !ok {
		return "", false, nil
	}

	if data.Salt == "" {
		return raw, true, nil
	}
	if s.passphrase == "" {
		return "", false, ErrPassphraseRequired
	}
	salt, err := base64.StdEncoding.DecodeString(data.Salt)
	if err != nil {
		return "", false, fmt.Errorf("decode salt: %w: %w", ErrCorruptStore, err)
	}
	value, err := open(raw, deriveKey(s.passphrase, salt))
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set writes value under key. A store that cannot be parsed, or that was
// sealed while no passphrase is configured now, is replaced.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadOrReset()
	if err != nil {
		return err
	}

	if s.passphrase == "" {
		if data.Salt != "" {
			data = &fileData{Values: map[string]string{}}
		}
		data.Values[key] = value
		return s.save(data)
	}

	var salt []byte
	if data.Salt == "" {
		salt = make([]byte, 16)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
		// Plaintext entries written before the passphrase was set are re-sealed.
		for k, v := range data.Values {
			sealed, err := seal(v, deriveKey(s.passphrase, salt))
			if err != nil {
				return err
			}
			data.Values[k] = sealed
		}
		data.Salt = base64.StdEncoding.EncodeToString(salt)
	} else if salt, err = base64.StdEncoding.DecodeString(data.Salt); err != nil {
		return fmt.Errorf("decode salt: %w: %w", ErrCorruptStore, err)
	}

	sealed, err := seal(value, deriveKey(s.passphrase, salt))
	if err != nil {
		return err
	}
	data.Values[key] = sealed
	return s.save(data)
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if errors.Is(err, ErrCorruptStore) {
		return s.save(&fileData{Values: map[string]string{}})
	}
	if err != nil {
		return err
	}
	if _, ok := data.Values[key]; !ok {
		return nil
	}
	delete(data.Values, key)
	return s.save(data)
}

func (s *FileStore) loadOrReset() (*fileData, error) {
	data, err := s.load()
	if errors.Is(err, ErrCorruptStore) {
		return &fileData{Values: map[string]string{}}, nil
	}
	return data, err
}

func (s *FileStore) load() (*fileData, error) {
	data := &fileData{Values: map[string]string{}}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential store: %w", err)
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("parse %s: %w: %w", s.path, ErrCorruptStore, err)
	}
	if data.Values == nil {
		data.Values = map[string]string{}
	}
	return data, nil
}

func (s *FileStore) save(data *fileData) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("write credential store: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func deriveKey(passphrase string, salt []byte) *[32]byte {
	var key [32]byte
	copy(key[:], argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32))
	return &key
}

func seal(plaintext string, key *[32]byte) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, key)
	return base64.StdEncoding.EncodeToString(box), nil
}

func open(encoded string, key *[32]byte) (string, error) {
	box, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	if len(box) < 24 {
		return "", errors.New("sealed value too short")
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, key)
	if !ok {
		return "", errors.New("cannot open sealed value: wrong passphrase or corrupt store")
	}
	return string(plain), nil
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
	writes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.writes++
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	m.writes++
	return nil
}

// Writes counts Set and Delete calls.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
