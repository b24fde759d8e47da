package state

import (
	"reflect"
)

// State maps channel names to their current values. Channels may be absent;
// readers treat a missing channel as its zero value.
type State map[string]any

// Snapshot returns a copy of the state that is safe to hand to a checkpoint
// store while nodes keep producing updates. The top-level map is copied and
// slice-valued channels are cloned; element values are shared.
func (s State) Snapshot() State {
	if s == nil {
		return State{}
	}

	out := make(State, len(s))
	for k, v := range s {
		out[k] = cloneValue(v)
	}
	return out
}

// Get returns the raw value of a channel and whether it is present.
func (s State) Get(name string) (any, bool) {
	v, ok := s[name]
	return v, ok
}

// GetString returns a string channel, or "" when absent or of another type.
func (s State) GetString(name string) string {
	if v, ok := s[name].(string); ok {
		return v
	}
	return ""
}

// GetBool returns a bool channel, or false when absent or of another type.
func (s State) GetBool(name string) bool {
	if v, ok := s[name].(bool); ok {
		return v
	}
	return false
}

// GetInt returns an int channel, or 0 when absent or of another type.
func (s State) GetInt(name string) int {
	switch v := s[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func cloneValue(v any) any {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		cp := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(cp, rv)
		return cp.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		cp := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			cp.SetMapIndex(iter.Key(), iter.Value())
		}
		return cp.Interface()
	default:
		return v
	}
}
