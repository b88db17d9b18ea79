package memstore

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crucial707/asset-audit/internal/models"
)

var errDuplicateItem = errors.New("audit item already exists for asset")

// Seed is the registry content loaded into a memory store.
type Seed struct {
	Categories []models.Option `yaml:"categories"`
	Locations  []models.Option `yaml:"locations"`
	Custodians []models.Option `yaml:"custodians"`
	Assets     []models.Asset  `yaml:"assets"`
}

// LoadSeed reads a YAML registry seed file.
func LoadSeed(path string) (*Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return &seed, nil
}

// Apply loads the seed into the store's registry.
func (s *Store) Apply(seed *Seed) error {
	for _, o := range seed.Categories {
		s.AddCategory(o.ID, o.Name)
	}
	for _, o := range seed.Locations {
		s.AddLocation(o.ID, o.Name)
	}
	for _, o := range seed.Custodians {
		s.AddCustodian(o.ID, o.Name)
	}
	for _, a := range seed.Assets {
		if err := s.AddAsset(a); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AddCategory(id int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.categories[id] = models.Option{ID: id, Name: name}
}

func (s *Store) AddLocation(id int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.locations[id] = models.Option{ID: id, Name: name}
}

func (s *Store) AddCustodian(id int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.custodians[id] = models.Option{ID: id, Name: name}
}

// AddAsset registers an asset. IDs and primary codes must be unique and non-empty.
func (s *Store) AddAsset(a models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID <= 0 || a.Code == "" {
		return fmt.Errorf("asset needs an id and a code")
	}
	if _, ok := s.st.assets[a.ID]; ok {
		return fmt.Errorf("asset %d already registered", a.ID)
	}
	for _, other := range s.st.assets {
		if other.Code == a.Code {
			return fmt.Errorf("asset code %q already registered", a.Code)
		}
	}
	s.st.assets[a.ID] = a
	return nil
}

// UpdateAsset replaces a registered asset, simulating a registry edit made outside the audit.
func (s *Store) UpdateAsset(a models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.assets[a.ID]; !ok {
		return fmt.Errorf("asset %d not registered", a.ID)
	}
	s.st.assets[a.ID] = a
	return nil
}
