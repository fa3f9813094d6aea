package domain

import "fmt"

// Dimension selects how entries are grouped for the timeline and for pair
// expansion. Both features share GroupKey so their notion of "related"
// agrees.
type Dimension string

const (
	DimCorrelationID Dimension = "correlation_id"
	DimResource      Dimension = "resource"
	DimPhase         Dimension = "phase"
)

// ParseDimension validates a dimension query parameter. An empty value
// defaults to correlation_id.
func ParseDimension(s string) (Dimension, error) {
	switch s {
	case "", string(DimCorrelationID):
		return DimCorrelationID, nil
	case string(DimResource):
		return DimResource, nil
	case string(DimPhase):
		return DimPhase, nil
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

// GroupKey maps an entry to its grouping key for the given dimension.
//
// For the correlation_id dimension entries without a correlation id fall
// back, in order, to resource type, phase and level so that every entry
// lands in some bucket; "general" is the terminal fallback.
func GroupKey(by Dimension, e *LogEntry) string {
	switch by {
	case DimResource:
		t := e.ResourceType
		if t == "" {
			t = "unknown_type"
		}
		n := e.ResourceName
		if n == "" {
			n = "unknown_name"
		}
		return t + ":" + n
	case DimPhase:
		if e.Phase == "" {
			return "unknown_phase"
		}
		return e.Phase
	default:
		if e.CorrelationID != "" {
			return e.CorrelationID
		}
		if e.ResourceType != "" {
			return "resource:" + e.ResourceType
		}
		if e.Phase != "" {
			return "phase:" + e.Phase
		}
		if e.Level != "" {
			return "level:" + e.Level
		}
		return "general"
	}
}
