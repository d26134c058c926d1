package types

import (
	"encoding/json"
	"fmt"
)

// Status says whether a Measure carries a usable value.
type Status int

const (
	Available Status = iota
	// Unavailable means an input was missing. It is never treated as zero.
	Unavailable
	// NotApplicable means the model does not apply to this security.
	NotApplicable
)

func (s Status) String() string {
	switch s {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	case NotApplicable:
		return "not_applicable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Measure is a metric value together with why it may be absent.
type Measure struct {
	Value  float64 `json:"value"`
	Status Status  `json:"status"`
	Note   string  `json:"note,omitempty"`
}

func Value(v float64) Measure {
	return Measure{Value: v, Status: Available}
}

func Missing(note string) Measure {
	return Measure{Status: Unavailable, Note: note}
}

func NotApplicableBecause(note string) Measure {
	return Measure{Status: NotApplicable, Note: note}
}

// Ok reports whether the measure holds a value.
func (m Measure) Ok() bool { return m.Status == Available }

func (m Measure) String() string {
	if m.Ok() {
		return fmt.Sprintf("%.2f", m.Value)
	}
	if m.Note != "" {
		return fmt.Sprintf("%s (%s)", m.Status, m.Note)
	}
	return m.Status.String()
}
