package client

import (
	"encoding/json"
	"strconv"

	"github.com/Sternrassler/whoop-cli/pkg/apierror"
)

// Object is a decoded JSON object. Numbers are json.Number.
type Object = map[string]any

// AsObject reports whether v is a JSON object.
func AsObject(v any) (Object, bool) {
	obj, ok := v.(map[string]any)
	return obj, ok && obj != nil
}

// Records returns the "records" array of a collection body. Every element
// must be an object.
func Records(obj Object, path string) ([]Object, error) {
	raw, ok := obj["records"].([]any)
	if !ok {
		return nil, apierror.Shape(path, "collection is missing a records array")
	}

	records := make([]Object, 0, len(raw))
	for _, item := range raw {
		rec, ok := AsObject(item)
		if !ok {
			return nil, apierror.Shape(path, "collection item is not an object")
		}
		records = append(records, rec)
	}
	return records, nil
}

// NextToken returns the pagination cursor of a collection body, read from
// "nextToken" or "next_token". A missing or null cursor yields "".
func NextToken(obj Object, path string) (string, error) {
	raw, ok := obj["nextToken"]
	if !ok || raw == nil {
		raw = obj["next_token"]
	}
	if raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", apierror.Shape(path, "pagination token is not a string")
	}
	return s, nil
}

// StringID reads obj[key] as an identifier. Strings and numbers are accepted;
// anything else reports false.
func StringID(obj Object, key string) (string, bool) {
	switch v := obj[key].(type) {
	case string:
		return v, v != ""
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}
