package profile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hperssn/promille/internal/domain"
	"github.com/hperssn/promille/internal/profile"
)

const profilesYAML = `
profiles:
  - id: bob
    name: Bob
    gender: Male
    weightKg: "72,5"
    age: 35
    heightCm: 180
    drinkingFrequency: weekly
  - id: alice
    gender: female
    weightKg: 60
    age: "28"
  - id: kim
    weightKg: heavy
`

func TestParse(t *testing.T) {
	store, err := profile.Parse([]byte(profilesYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "kim"}, store.IDs())

	tests := []struct {
		id     string
		gender domain.Gender
		weight float64
		age    int
	}{
		{id: "bob", gender: domain.GenderMale, weight: 72.5, age: 35},
		{id: "alice", gender: domain.GenderFemale, weight: 60, age: 28},
		{id: "kim", gender: "", weight: 0, age: 0},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			p, ok := store.Get(tt.id)
			require.True(t, ok, "profile %s missing", tt.id)
			assert.Equal(t, tt.gender, p.Gender)
			assert.Equal(t, tt.weight, p.WeightKg)
			assert.Equal(t, tt.age, p.Age)
		})
	}

	_, ok := store.Get("nobody")
	assert.False(t, ok, "unknown profile should not be found")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{name: "duplicate", yaml: "profiles:\n  - id: a\n  - id: a\n", want: profile.ErrDuplicateProfile},
		{name: "missing id", yaml: "profiles:\n  - name: nobody\n", want: profile.ErrMissingID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := profile.Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := profile.Parse([]byte("profiles: ["))
	assert.Error(t, err, "malformed yaml should fail")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(profilesYAML), 0o644))

	store, err := profile.LoadFile(path)
	require.NoError(t, err)
	_, ok := store.Get("bob")
	assert.True(t, ok)

	_, err = profile.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "missing file should fail")
}
