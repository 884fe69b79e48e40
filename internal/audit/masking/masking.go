package masking

import "strings"

const maskToken = "****"

var sensitiveKeys = []string{"password", "token", "secret", "email", "message"}

// MaskSecret redacts a value while keeping a short suffix for correlation.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskSensitive returns a copy of input where values under sensitive keys
// are masked. Nested maps are handled recursively.
func MaskSensitive(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		switch cast := value.(type) {
		case map[string]any:
			out[k] = MaskSensitive(cast)
		case string:
			if isSensitive(k) {
				out[k] = MaskSecret(cast)
			} else {
				out[k] = cast
			}
		default:
			out[k] = value
		}
	}
	return out
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
