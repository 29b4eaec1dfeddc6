package numeric

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in    string
		want  float64
		valid bool
	}{
		{"72.5", 72.5, true},
		{" 330 ", 330, true},
		{"4,7", 4.7, true},
		{"", 0, false},
		{"heavy", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		assert.Equal(t, tt.want, got, "Parse(%q)", tt.in)
		assert.Equal(t, tt.valid, ok, "Parse(%q)", tt.in)
	}
}

func TestOrDefaultAndNonNegative(t *testing.T) {
	assert.Equal(t, 70.0, OrDefault(0, 70))
	assert.Equal(t, 70.0, OrDefault(-3, 70))
	assert.Equal(t, 70.0, OrDefault(math.NaN(), 70))
	assert.Equal(t, 82.0, OrDefault(82, 70))

	assert.Zero(t, NonNegative(-1))
	assert.Zero(t, NonNegative(math.Inf(1)))
	assert.Equal(t, 2.0, NonNegative(2))
}

func TestNumberDecoding(t *testing.T) {
	var req struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
		D Number `json:"d"`
	}
	body := `{"a": 5, "b": "12.5", "c": "abc", "d": null}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.True(t, req.A.Valid)
	assert.Equal(t, 5.0, req.A.Float())
	assert.Equal(t, 12.5, req.B.Float())
	assert.False(t, req.C.Valid)
	assert.Zero(t, req.C.Float())
	assert.False(t, req.D.Valid)

	var doc struct {
		Weight Number `yaml:"weight"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("weight: \"81\"\n"), &doc))
	assert.Equal(t, 81.0, doc.Weight.Float())
}
