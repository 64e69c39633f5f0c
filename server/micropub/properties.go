package micropub

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Value is a single property value from the wire. Most values are
// plain strings, but photo values may carry alt text and content may
// arrive as a {"html": "..."} object, which is flattened to the HTML
// string.
type Value struct {
	Text string
	Alt  string
}

// MarshalJSON writes the value back in its wire shape.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Alt != "" {
		return json.Marshal(map[string]string{"value": v.Text, "alt": v.Alt})
	}
	return json.Marshal(v.Text)
}

// Property holds the values supplied for one wire property. List
// records that the wire shape was a list even when it held a single
// element, which is how a one-tag category is kept distinct from a
// scalar field.
type Property struct {
	Values []Value
	List   bool
}

// MarshalJSON writes the property back as a Microformats2 value list.
func (p Property) MarshalJSON() ([]byte, error) {
	values := p.Values
	if values == nil {
		values = []Value{}
	}
	return json.Marshal(values)
}

// Properties is the canonical property map built from either wire
// encoding. Value order within a property is preserved from the wire.
type Properties map[string]Property

func (p Properties) Has(name string) bool {
	prop, ok := p[name]
	return ok && len(prop.Values) > 0
}

// Scalar returns the first value of a property, or "" when absent.
func (p Properties) Scalar(name string) string {
	if prop, ok := p[name]; ok && len(prop.Values) > 0 {
		return prop.Values[0].Text
	}
	return ""
}

// All returns every value of a property in wire order.
func (p Properties) All(name string) []string {
	prop, ok := p[name]
	if !ok {
		return nil
	}
	values := make([]string, 0, len(prop.Values))
	for _, v := range prop.Values {
		values = append(values, v.Text)
	}
	return values
}

// Updates carries the raw replace/add/delete instruction sets of an
// update action. The values stay untyped until Apply validates their
// shape, so a malformed instruction can be reported without guessing.
type Updates struct {
	Replace map[string]any
	Add     map[string]any
	Delete  any
}

// Empty reports whether no instruction was supplied at all.
func (u Updates) Empty() bool {
	if len(u.Replace) > 0 || len(u.Add) > 0 {
		return false
	}
	switch d := u.Delete.(type) {
	case nil:
		return true
	case map[string]any:
		return len(d) == 0
	case []any:
		return len(d) == 0
	default:
		return false
	}
}

// Request is a decoded Micropub request from either wire encoding.
type Request struct {
	Action     string
	URL        string
	Type       string
	Properties Properties
	Updates    Updates
	Token      string // access_token supplied in the body
}

// ParseForm normalizes a form-encoded body. category and category[]
// both feed the category property and stay lists even with a single
// value; every other key collapses to a scalar.
func ParseForm(values url.Values) *Request {
	req := &Request{
		Action:     ActionCreate,
		Properties: make(Properties),
	}
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		switch key {
		case "action":
			req.Action = vals[0]
		case "url":
			req.URL = vals[0]
		case "h":
			req.Type = "h-" + vals[0]
		case "access_token":
			req.Token = vals[0]
		case CategoryProperty, CategoryProperty + "[]":
			prop := req.Properties[CategoryProperty]
			prop.List = true
			for _, v := range vals {
				prop.Values = append(prop.Values, Value{Text: v})
			}
			req.Properties[CategoryProperty] = prop
		default:
			req.Properties[key] = Property{Values: []Value{{Text: vals[0]}}}
		}
	}
	return req
}

// ParseJSON normalizes a JSON body of either the create shape
// ({"type": ..., "properties": ...}) or the action shape ({"action":
// ..., "url": ..., "replace"/"add"/"delete": ...}). In the action
// shape the instruction sets pass through untouched for the merge
// engine to validate.
func ParseJSON(body []byte) (*Request, error) {
	var envelope struct {
		Action     string           `json:"action"`
		URL        string           `json:"url"`
		Type       []string         `json:"type"`
		Properties map[string][]any `json:"properties"`
		Replace    map[string]any   `json:"replace"`
		Add        map[string]any   `json:"add"`
		Delete     any              `json:"delete"`
		Token      string           `json:"access_token"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, InvalidRequest("could not decode the request body")
	}

	req := &Request{
		Action:     ActionCreate,
		URL:        envelope.URL,
		Properties: make(Properties),
		Token:      envelope.Token,
	}

	if envelope.Action != "" {
		req.Action = envelope.Action
		req.Updates = Updates{
			Replace: envelope.Replace,
			Add:     envelope.Add,
			Delete:  envelope.Delete,
		}
		return req, nil
	}

	if len(envelope.Type) > 0 {
		req.Type = envelope.Type[0]
	}
	for name, raw := range envelope.Properties {
		prop := Property{List: len(raw) != 1}
		for _, item := range raw {
			prop.Values = append(prop.Values, parseValue(name, item))
		}
		req.Properties[name] = prop
	}
	return req, nil
}

// parseValue handles the string-or-object shapes Micropub allows for
// individual property values.
func parseValue(name string, v any) Value {
	switch t := v.(type) {
	case string:
		return Value{Text: t}
	case map[string]any:
		var val Value
		if s, ok := t["value"].(string); ok {
			val.Text = s
		}
		if s, ok := t["alt"].(string); ok {
			val.Alt = s
		}
		if name == ContentProperty {
			if s, ok := t["html"].(string); ok {
				val.Text = s
			}
		}
		return val
	default:
		return Value{Text: fmt.Sprint(t)}
	}
}

// ParsePermalink extracts the timestamp-derived post identifier from a
// canonical post URL.
func ParsePermalink(rawurl string) (int64, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return 0, err
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	id, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("no post identifier in path [%s]", u.Path)
	}
	return id, nil
}

// PermalinkPath builds the canonical path for a post.
func PermalinkPath(postType string, identifier int64) string {
	return fmt.Sprintf("/%s/%d/", Plural(postType), identifier)
}
