package codec

import "encoding/json"

// fields is a JSON object decoded one member at a time. Accessors return
// the zero value for members that are absent, null or of another type, so
// one mistyped member never costs the rest of the object.
type fields map[string]json.RawMessage

// objectFields decodes raw as an object. Anything else yields no fields.
func objectFields(raw json.RawMessage) fields {
	var f fields
	if len(raw) == 0 || json.Unmarshal(raw, &f) != nil {
		return nil
	}
	return f
}

func (f fields) str(key string) string {
	s, _ := f.optStr(key)
	return s
}

// optStr reports whether key holds a string.
func (f fields) optStr(key string) (string, bool) {
	raw, ok := f[key]
	if !ok || string(raw) == "null" {
		return "", false
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

// strPtr is optStr as a pointer, nil when key holds no string.
func (f fields) strPtr(key string) *string {
	s, ok := f.optStr(key)
	if !ok {
		return nil
	}
	return &s
}

// strs returns the string elements of an array member. Non-string
// elements are skipped; a missing or mistyped member is an empty list.
func (f fields) strs(key string) []string {
	out := []string{}
	var elems []json.RawMessage
	if raw, ok := f[key]; !ok || json.Unmarshal(raw, &elems) != nil {
		return out
	}
	for _, e := range elems {
		var s string
		if string(e) != "null" && json.Unmarshal(e, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

// object returns an object member as generic values, nil otherwise.
func (f fields) object(key string) map[string]any {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	var m map[string]any
	if json.Unmarshal(raw, &m) != nil {
		return nil
	}
	return m
}
