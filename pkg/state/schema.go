package state

import (
	"fmt"
	"reflect"
	"sort"
)

// ReducerKind selects how a channel combines an existing value with an
// incoming partial update.
type ReducerKind string

const (
	// ReducerReplace keeps the incoming value (last write wins).
	ReducerReplace ReducerKind = "replace"
	// ReducerAppend concatenates slice values, preserving order.
	ReducerAppend ReducerKind = "append"
	// ReducerCustom delegates to a user-supplied function, which must be
	// associative and commutative for updates produced concurrently.
	ReducerCustom ReducerKind = "custom"
)

// ReducerFunc combines an existing channel value with an update.
type ReducerFunc func(existing, update any) (any, error)

// Channel declares a named slot in the state container.
type Channel struct {
	Reducer ReducerKind
	// Fn is required for ReducerCustom and ignored otherwise.
	Fn ReducerFunc
	// Default, when set, seeds the channel in NewState.
	Default func() any
}

// Schema is the declared set of channels for a graph. It is built during
// graph construction and treated as read-only afterwards.
type Schema struct {
	channels map[string]Channel
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{channels: make(map[string]Channel)}
}

// AddChannel declares or replaces a channel. Re-declaration overwrites so
// builders may register idempotently.
func (s *Schema) AddChannel(name string, ch Channel) *Schema {
	if ch.Reducer == "" {
		ch.Reducer = ReducerReplace
	}
	s.channels[name] = ch
	return s
}

// Channel returns the declaration for a channel name.
func (s *Schema) Channel(name string) (Channel, bool) {
	ch, ok := s.channels[name]
	return ch, ok
}

// Names returns all declared channel names, sorted.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every custom channel carries a reducer function.
func (s *Schema) Validate() error {
	for name, ch := range s.channels {
		switch ch.Reducer {
		case ReducerReplace, ReducerAppend:
		case ReducerCustom:
			if ch.Fn == nil {
				return fmt.Errorf("channel %q: custom reducer requires a function", name)
			}
		default:
			return fmt.Errorf("channel %q: unknown reducer kind %q", name, ch.Reducer)
		}
	}
	return nil
}

// NewState seeds channel defaults and merges caller-supplied initial values
// over them.
func (s *Schema) NewState(initial State) (State, error) {
	st := State{}
	for name, ch := range s.channels {
		if ch.Default != nil {
			st[name] = ch.Default()
		}
	}
	if len(initial) == 0 {
		return st, nil
	}
	return s.Merge(st, initial)
}

// Merge applies every channel present in partial to the current state through
// that channel's reducer and returns the merged state. Channels absent from
// partial are untouched. Updates targeting undeclared channels or carrying a
// type the reducer cannot combine are configuration errors.
func (s *Schema) Merge(cur State, partial State) (State, error) {
	out := make(State, len(cur)+len(partial))
	for k, v := range cur {
		out[k] = v
	}

	for name, update := range partial {
		ch, ok := s.channels[name]
		if !ok {
			return nil, fmt.Errorf("channel %q is not declared in the schema", name)
		}

		merged, err := applyReducer(ch, out[name], update)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", name, err)
		}
		out[name] = merged
	}

	return out, nil
}

func applyReducer(ch Channel, existing, update any) (any, error) {
	switch ch.Reducer {
	case ReducerReplace:
		return update, nil
	case ReducerAppend:
		return appendValues(existing, update)
	case ReducerCustom:
		if ch.Fn == nil {
			return nil, fmt.Errorf("custom reducer has no function")
		}
		return ch.Fn(existing, update)
	default:
		return nil, fmt.Errorf("unknown reducer kind %q", ch.Reducer)
	}
}

// appendValues concatenates two slice values of the same element type.
// A nil existing value yields a copy of the update so later appends never
// alias the caller's slice.
func appendValues(existing, update any) (any, error) {
	uv := reflect.ValueOf(update)
	if update == nil || uv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("append reducer requires a slice update, got %T", update)
	}

	if existing == nil {
		cp := reflect.MakeSlice(uv.Type(), uv.Len(), uv.Len())
		reflect.Copy(cp, uv)
		return cp.Interface(), nil
	}

	ev := reflect.ValueOf(existing)
	if ev.Kind() != reflect.Slice || ev.Type() != uv.Type() {
		return nil, fmt.Errorf("append reducer type mismatch: existing %T, update %T", existing, update)
	}

	cp := reflect.MakeSlice(ev.Type(), ev.Len(), ev.Len()+uv.Len())
	reflect.Copy(cp, ev)
	cp = reflect.AppendSlice(cp, uv)
	return cp.Interface(), nil
}
