package tools

import (
	"AgentCore/pkg/engine/api"
)

// GetStringArg extracts a string argument with a fallback default.
func GetStringArg(args api.Args, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

// GetIntArg extracts an integer argument, tolerating the float64 values
// JSON decoding produces.
func GetIntArg(args api.Args, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// GetBoolArg extracts a boolean argument with a fallback default.
func GetBoolArg(args api.Args, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}
