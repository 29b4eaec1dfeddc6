// Package numeric parses loosely typed numeric input. Values that are not
// finite numbers decode to zero instead of failing, so the model can apply its
// own defaults downstream.
package numeric

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse returns v as a finite float and whether it was valid.
func Parse(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	// accept decimal commas as typed on some keyboards
	v = strings.Replace(v, ",", ".", 1)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// OrDefault returns v when it is finite and strictly positive, otherwise def.
func OrDefault(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return def
	}
	return v
}

// NonNegative clamps negative and non-finite values to zero.
func NonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Number decodes from JSON numbers, JSON strings, YAML scalars and text.
// Invalid input yields zero with Valid false.
type Number struct {
	Value float64
	Valid bool
}

func (n Number) Float() float64 {
	return n.Value
}

func (n *Number) set(raw string) {
	n.Value, n.Valid = Parse(raw)
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n.set(s)
		return nil
	}
	n.set(string(data))
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Value)
}

func (n *Number) UnmarshalYAML(value *yaml.Node) error {
	n.set(value.Value)
	return nil
}

func (n *Number) UnmarshalText(text []byte) error {
	n.set(string(text))
	return nil
}
