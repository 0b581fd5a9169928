package channel

// Doc is one raw channel object as decoded from the repository JSON.
type Doc map[string]any

// Str returns the first non-empty string value among the named fields.
func (d Doc) Str(fields ...string) string {
	for _, f := range fields {
		if s, ok := d[f].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// StrList returns the string elements of an array-valued field, skipping
// non-string and empty entries.
func (d Doc) StrList(field string) []string {
	raw, ok := d[field].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ExtractList pulls the channel array out of a decoded payload. The
// repository serves either a bare array or an object with the array under one
// of a few well-known keys.
func ExtractList(v any) []Doc {
	var raw []any
	switch t := v.(type) {
	case []any:
		raw = t
	case map[string]any:
		for _, key := range []string{"channels", "items", "streams", "list"} {
			if arr, ok := t[key].([]any); ok {
				raw = arr
				break
			}
		}
	}
	out := make([]Doc, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Doc(m))
		}
	}
	return out
}
