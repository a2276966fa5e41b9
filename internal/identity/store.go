// Package identity keeps the generated service ID on disk so that a
// deregister run uses the ID of the register run before it.
package identity

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/google/wire"
	"github.com/heytom-labs/consul-registrar/internal/config"
	"github.com/heytom-labs/consul-registrar/internal/registry"
)

// ProviderSet 服务ID存储Provider集合
var ProviderSet = wire.NewSet(
	ProvideStore,
)

// Store reads and writes the identity file. It assumes a single invocation
// per working directory.
type Store struct {
	path string
}

// NewStore 创建服务ID存储
func NewStore(path string) *Store {
	return &Store{path: path}
}

// ProvideStore 提供服务ID存储实例
func ProvideStore(cfg *config.Config) *Store {
	return NewStore(cfg.Identity.File)
}

// Path returns the location of the identity file.
func (s *Store) Path() string {
	return s.path
}

// Resolve returns the service ID. An ID already set on the service wins.
// Otherwise the stored ID is reused, and when there is none a new
// "<name>-<uuid>" ID is generated and stored.
func (s *Store) Resolve(service *registry.Service) (string, error) {
	if service.ID != "" {
		return service.ID, nil
	}

	if id, ok := s.read(); ok {
		return id, nil
	}

	id := fmt.Sprintf("%s-%s", service.Name, uuid.NewString())
	if err := os.WriteFile(s.path, []byte(id), 0o644); err != nil {
		return "", fmt.Errorf("failed to write service ID to %s: %w", s.path, err)
	}
	return id, nil
}

func (s *Store) read() (string, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(string(data))
	return id, id != ""
}

// Clear removes the identity file. A missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove service ID file %s: %w", s.path, err)
	}
	return nil
}
