package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// StateSchemaVersion is bumped whenever the persisted State layout changes.
const StateSchemaVersion = 1

// Reserved field names.
const (
	FieldError           = "error"
	FieldSessionComplete = "session_complete"
)

// monetaryFields may never hold a negative value.
var monetaryFields = map[string]bool{
	"premium":       true,
	"coverage":      true,
	"claim_amount":  true,
	"reimbursement": true,
}

// State is the single mutable record a session's nodes read and write.
type State struct {
	// Version is the schema version of the record.
	Version int `json:"version"`

	// Revision increments every time a node is applied.
	Revision uint64 `json:"revision"`

	// Fields holds the session data. Fields appear as nodes run.
	Fields map[string]any `json:"fields"`

	// Loops counts consecutive self-routings per node.
	Loops map[string]int `json:"loops,omitempty"`

	// Outbox collects the messages produced during the current run.
	// It is reset by the executor at the start of every run and is never
	// persisted with the session.
	Outbox []string `json:"-"`
}

// NewState creates an empty state at the current schema version.
func NewState() *State {
	return &State{
		Version: StateSchemaVersion,
		Fields:  make(map[string]any),
		Loops:   make(map[string]int),
	}
}

func (s *State) ensure() {
	if s.Fields == nil {
		s.Fields = make(map[string]any)
	}
	if s.Loops == nil {
		s.Loops = make(map[string]int)
	}
}

// Lookup returns the raw value of a field and whether it is present.
func (s *State) Lookup(name string) (any, bool) {
	if s == nil || s.Fields == nil {
		return nil, false
	}
	v, ok := s.Fields[name]
	return v, ok
}

// Has reports whether a field is present.
func (s *State) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// Text returns a field as a string. Non-string scalars are formatted.
func (s *State) Text(name string) (string, bool) {
	v, ok := s.Lookup(name)
	if !ok || v == nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int, int64, bool:
		return fmt.Sprint(x), true
	}
	return "", false
}

// TextOr returns the string value of a field or def when absent or empty.
func (s *State) TextOr(name, def string) string {
	if v, ok := s.Text(name); ok && v != "" {
		return v
	}
	return def
}

// Float returns a numeric field. Numeric strings are accepted.
func (s *State) Float(name string) (float64, bool) {
	v, ok := s.Lookup(name)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Int returns a numeric field truncated to an int.
func (s *State) Int(name string) (int, bool) {
	f, ok := s.Float(name)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Bool returns a boolean field; absent or non-boolean fields read as false.
func (s *State) Bool(name string) bool {
	v, ok := s.Lookup(name)
	if !ok {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	}
	return false
}

// Set writes a field. Monetary fields reject negative and non-finite values, and the
// error field can only be latched once.
func (s *State) Set(name string, value any) error {
	s.ensure()
	if name == FieldError {
		s.Fail(fmt.Sprint(value))
		return nil
	}
	if monetaryFields[name] {
		f, ok := toFloat(value)
		if !ok {
			return &ValidationError{Field: name, Message: fmt.Sprintf("%s must be a number", name)}
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return &ValidationError{Field: name, Message: fmt.Sprintf("%s must be a finite number", name)}
		}
		if f < 0 {
			return &ValidationError{Field: name, Message: fmt.Sprintf("%s must not be negative", name)}
		}
	}
	s.Fields[name] = value
	return nil
}

// Delete removes a field. The error field cannot be removed once set.
func (s *State) Delete(name string) {
	if s.Fields == nil || name == FieldError {
		return
	}
	delete(s.Fields, name)
}

// Fail latches the error field. The first failure wins.
func (s *State) Fail(message string) {
	s.ensure()
	if _, failed := s.Fields[FieldError]; failed {
		return
	}
	if message == "" {
		message = "unknown error"
	}
	s.Fields[FieldError] = message
}

// Failure returns the latched error message, if any.
func (s *State) Failure() (string, bool) {
	return s.Text(FieldError)
}

// Failed reports whether the error field is set.
func (s *State) Failed() bool {
	return s.Has(FieldError)
}

// Say queues a message for the caller verbatim.
func (s *State) Say(msg string) {
	s.Outbox = append(s.Outbox, msg)
}

// Sayf formats and queues a message for the caller.
func (s *State) Sayf(format string, args ...any) {
	s.Say(fmt.Sprintf(format, args...))
}

// Append adds an entry to a list field, creating it when absent.
func (s *State) Append(name string, entry any) {
	s.ensure()
	list, _ := s.Fields[name].([]any)
	s.Fields[name] = append(list, entry)
}

// Decode copies the fields into a typed view (struct tagged with `mapstructure`).
func (s *State) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(s.Fields); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		Version:  s.Version,
		Revision: s.Revision,
		Fields:   make(map[string]any, len(s.Fields)),
		Loops:    make(map[string]int, len(s.Loops)),
	}
	for k, v := range s.Fields {
		out.Fields[k] = cloneValue(v)
	}
	for k, v := range s.Loops {
		out.Loops[k] = v
	}
	if len(s.Outbox) > 0 {
		out.Outbox = append([]string(nil), s.Outbox...)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, vv := range x {
			m[k] = cloneValue(vv)
		}
		return m
	case []any:
		l := make([]any, len(x))
		for i, vv := range x {
			l[i] = cloneValue(vv)
		}
		return l
	case []string:
		return append([]string(nil), x...)
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
