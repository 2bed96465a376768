package domain

// Priority is shared by outbound orders and warehouse tasks.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority validates p. An empty string defaults to normal.
func ParsePriority(p string) (Priority, error) {
	if p == "" {
		return PriorityNormal, nil
	}
	priority := Priority(p)
	if !priority.IsValid() {
		return "", ErrInvalidPriority
	}
	return priority, nil
}

// IsValid checks if the priority is one of the known values
func (p Priority) IsValid() bool {
	return p.Rank() > 0
}

// Rank returns the priority rank, higher is more urgent. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityNormal:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 0
	}
}

// IsHigherThan returns true if this priority is more urgent than other
func (p Priority) IsHigherThan(other Priority) bool {
	return p.Rank() > other.Rank()
}
