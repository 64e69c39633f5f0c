package micropub

import (
	"fmt"
	"strings"
)

// Fields is a post's stored field map, as read from the store and
// written back after an update. Tags are always the single delimited
// string, never a raw list.
type Fields map[string]string

// Apply runs the update algorithm over a post's current fields and
// returns the new field map. Instructions run replace, then add, then
// delete, each step over the result of the previous one. A malformed
// instruction aborts the whole update; the input map is never mutated,
// so nothing is half-applied when an error comes back.
func (u Updates) Apply(current Fields) (Fields, error) {
	if u.Empty() {
		return nil, InvalidRequest("missing replace, add, or delete key")
	}

	fields := make(Fields, len(current))
	for k, v := range current {
		fields[k] = v
	}

	if err := applyReplace(fields, u.Replace); err != nil {
		return nil, err
	}
	if err := applyAdd(fields, u.Add); err != nil {
		return nil, err
	}
	if err := applyDelete(fields, u.Delete); err != nil {
		return nil, err
	}
	return fields, nil
}

func applyReplace(fields Fields, replace map[string]any) error {
	for name, raw := range replace {
		values, ok := stringList(name, raw)
		if !ok {
			return InvalidRequest(fmt.Sprintf("the replace value for %s must be a list", name))
		}
		field, ok := FieldFor(name)
		if !ok {
			return InvalidRequest(fmt.Sprintf("cannot update the %s property", name))
		}
		if field == FieldTags {
			fields[field] = strings.Join(values, TagSeparator)
		} else if len(values) == 0 {
			fields[field] = ""
		} else {
			fields[field] = values[0]
		}
	}
	return nil
}

func applyAdd(fields Fields, add map[string]any) error {
	for name, raw := range add {
		values, ok := stringList(name, raw)
		if !ok {
			return InvalidRequest(fmt.Sprintf("the add value for %s must be a list", name))
		}
		field, ok := FieldFor(name)
		if !ok {
			return InvalidRequest(fmt.Sprintf("cannot update the %s property", name))
		}
		if field != FieldTags {
			// Scalar add has no defined semantics, so refuse it rather than guess.
			return InvalidRequest(fmt.Sprintf("add is not supported for the %s property", name))
		}
		tags := splitTags(fields[field])
		for _, v := range values {
			if !containsString(tags, v) {
				tags = append(tags, v)
			}
		}
		fields[field] = strings.Join(tags, TagSeparator)
	}
	return nil
}

func applyDelete(fields Fields, del any) error {
	switch d := del.(type) {
	case nil:
		return nil
	case []any:
		// A bare list of property names clears each one entirely.
		for _, item := range d {
			name, ok := item.(string)
			if !ok {
				return InvalidRequest("the delete list must name properties")
			}
			field, ok := FieldFor(name)
			if !ok {
				return InvalidRequest(fmt.Sprintf("cannot update the %s property", name))
			}
			fields[field] = ""
		}
	case map[string]any:
		// A property-to-values map removes only the named values.
		for name, raw := range d {
			values, ok := stringList(name, raw)
			if !ok {
				return InvalidRequest(fmt.Sprintf("the delete value for %s must be a list", name))
			}
			field, ok := FieldFor(name)
			if !ok {
				return InvalidRequest(fmt.Sprintf("cannot update the %s property", name))
			}
			if field == FieldTags {
				var kept []string
				for _, tag := range splitTags(fields[field]) {
					if !containsString(values, tag) {
						kept = append(kept, tag)
					}
				}
				fields[field] = strings.Join(kept, TagSeparator)
			} else {
				for _, v := range values {
					if fields[field] == v {
						fields[field] = ""
					}
				}
			}
		}
	default:
		return InvalidRequest("the delete value must be a list or a map")
	}
	return nil
}

// stringList validates that a raw instruction value is a list and
// flattens its elements to strings.
func stringList(name string, raw any) ([]string, bool) {
	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	values := make([]string, 0, len(list))
	for _, item := range list {
		values = append(values, parseValue(name, item).Text)
	}
	return values, true
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, TagSeparator)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
