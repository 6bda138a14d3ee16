package domain

import (
	"reflect"
)

// StateDiff represents the changes between two snapshots of a session state.
// It is serialized to JSON so clients can apply partial updates.
type StateDiff struct {
	// Revision is the revision of the newer state.
	Revision uint64 `json:"revision"`

	// Fields contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Fields map[string]any `json:"fields,omitempty"`

	// Failed is set when the newer state latched an error.
	Failed bool `json:"failed,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState.
// It returns nil when nothing changed.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		Revision: newState.Revision,
		Fields:   diffFields(oldState, newState),
	}
	if newState.Failed() && (oldState == nil || !oldState.Failed()) {
		diff.Failed = true
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffFields(old *State, new *State) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Fields {
			delta[k] = v
		}
		if len(delta) == 0 {
			return nil
		}
		return delta
	}

	for k, newVal := range new.Fields {
		oldVal, exists := old.Fields[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range old.Fields {
		if _, exists := new.Fields[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return len(d.Fields) == 0 && !d.Failed
}
