package commandstructure

import (
	"math"
	"strconv"
	"strings"
)

// GetStringParam safely extracts a string parameter from the params map
func GetStringParam(params map[string]any, key string, defaultValue string) string {
	if val, ok := params[key]; ok {
		if strVal, ok := val.(string); ok {
			return strVal
		}
	}
	return defaultValue
}

// GetIntParam extracts an int parameter from the params map.
// Query values arrive as strings and JSON numbers as float64; both are accepted
// as long as they hold an integral value.
func GetIntParam(params map[string]any, key string, defaultValue int) (int, error) {
	val, ok := params[key]
	if !ok {
		return defaultValue, nil
	}
	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, NewParamError("%s must be an integer, got %v", key, v)
		}
		return int(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return defaultValue, nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, NewParamError("%s must be an integer, got %q", key, v)
		}
		return i, nil
	}
	return 0, NewParamError("%s must be an integer", key)
}

// GetFloatParam extracts a float parameter from the params map
func GetFloatParam(params map[string]any, key string, defaultValue float64) (float64, error) {
	val, ok := params[key]
	if !ok {
		return defaultValue, nil
	}
	var f float64
	switch v := val.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return defaultValue, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, NewParamError("%s must be a number, got %q", key, v)
		}
		f = parsed
	default:
		return 0, NewParamError("%s must be a number", key)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, NewParamError("%s must be a finite number", key)
	}
	return f, nil
}

// FirstPresent returns the first key of keys that exists in params, or "" when none does.
// Used to accept alternative spellings of the same field.
func FirstPresent(params map[string]any, keys ...string) string {
	for _, key := range keys {
		if _, ok := params[key]; ok {
			return key
		}
	}
	return ""
}

// ValidateRequiredParams checks that all required parameters are present
func ValidateRequiredParams(params map[string]any, required []string) error {
	for _, key := range required {
		if _, ok := params[key]; !ok {
			return NewParamError("missing required parameter: %s", key)
		}
	}
	return nil
}

// CheckFloatRange fails with a ParamError when v lies outside [min, max]
func CheckFloatRange(label string, v, min, max float64) error {
	if v < min || v > max {
		return NewParamError("%s must be between %s and %s", label, formatBound(min), formatBound(max))
	}
	return nil
}

// CheckIntRange fails with a ParamError when v lies outside [min, max]
func CheckIntRange(label string, v, min, max int) error {
	if v < min || v > max {
		return NewParamError("%s must be between %d and %d", label, min, max)
	}
	return nil
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
