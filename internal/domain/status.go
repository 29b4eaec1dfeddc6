package domain

import (
	"fmt"
	"time"
)

// Status is the ordered risk scale. Higher values are worse.
type Status int

const (
	StatusSafe Status = iota
	StatusCaution
	StatusWarning
	StatusDanger
	StatusCritical
)

var statusNames = [...]string{"safe", "caution", "warning", "danger", "critical"}

func (s Status) String() string {
	if s < StatusSafe || s > StatusCritical {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) AtLeast(other Status) bool {
	return s >= other
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func ParseStatus(v string) (Status, error) {
	for i, name := range statusNames {
		if name == v {
			return Status(i), nil
		}
	}
	return StatusSafe, fmt.Errorf("unknown status %q", v)
}

// Sample is one point of a BAC time series.
type Sample struct {
	At  time.Time `json:"at"`
	BAC float64   `json:"bac"`
}

// BacSnapshot is the derived state handed back to callers after every read or mutation.
type BacSnapshot struct {
	Current    float64    `json:"current"`
	Max        float64    `json:"max"`
	Status     Status     `json:"status"`
	SoberAt    *time.Time `json:"soberAt,omitempty"`
	LegalAt    *time.Time `json:"legalAt,omitempty"`
	Series     []Sample   `json:"series"`
	Degraded   bool       `json:"degraded,omitempty"`
	ComputedAt time.Time  `json:"computedAt"`
}
