// Package profile provides the read-only profile store the engine consults.
package profile

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hperssn/promille/internal/domain"
	"github.com/hperssn/promille/internal/platform/numeric"
)

var (
	ErrDuplicateProfile = errors.New("duplicate profile")
	ErrMissingID        = errors.New("profile without id")
)

type Store struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
}

func NewStore(profiles ...domain.Profile) (*Store, error) {
	s := &Store{profiles: make(map[string]domain.Profile, len(profiles))}
	for _, p := range profiles {
		if err := s.Put(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Put adds a profile. Ids are unique.
func (s *Store) Put(p domain.Profile) error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProfile, p.ID)
	}
	s.profiles[p.ID] = p
	return nil
}

func (s *Store) Get(profileID string) (domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[profileID]
	return p, ok
}

func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type fileProfile struct {
	ID                string                   `yaml:"id"`
	Name              string                   `yaml:"name"`
	Gender            domain.Gender            `yaml:"gender"`
	WeightKg          numeric.Number           `yaml:"weightKg"`
	Age               numeric.Number           `yaml:"age"`
	HeightCm          numeric.Number           `yaml:"heightCm"`
	DrinkingFrequency domain.DrinkingFrequency `yaml:"drinkingFrequency"`
}

type file struct {
	Profiles []fileProfile `yaml:"profiles"`
}

// Parse decodes a YAML profile list. Unreadable numbers decode to zero and are
// left for the model to replace with its defaults.
func Parse(data []byte) (*Store, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal profiles: %w", err)
	}

	profiles := make([]domain.Profile, 0, len(f.Profiles))
	for _, fp := range f.Profiles {
		profiles = append(profiles, domain.Profile{
			ID:                strings.TrimSpace(fp.ID),
			Name:              fp.Name,
			Gender:            domain.Gender(strings.ToLower(string(fp.Gender))),
			WeightKg:          fp.WeightKg.Float(),
			Age:               int(fp.Age.Float()),
			HeightCm:          int(fp.HeightCm.Float()),
			DrinkingFrequency: fp.DrinkingFrequency,
		})
	}
	return NewStore(profiles...)
}

func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return Parse(data)
}
