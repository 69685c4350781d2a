package observability

import "strings"

const redactedValue = "[REDACTED]"

// redactFields returns a copy of fields with sensitive keys replaced,
// matching libs/observability/redact.go's sensitive-key heuristics, widened
// to the fields this engine actually logs (account/auth secrets, not order
// payloads — order IDs and symbols are the whole point of a trading log).
func redactFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if isSensitiveKey(k) {
			out[k] = redactedValue
			continue
		}
		if err, ok := v.(error); ok {
			out[k] = err.Error()
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	if key == "" {
		return false
	}
	k := strings.ToLower(strings.TrimSpace(key))
	switch k {
	case "password", "jwt", "bearer_token", "api_key", "apikey":
		return true
	}
	if strings.Contains(k, "password") || strings.Contains(k, "secret") ||
		strings.Contains(k, "token") || strings.Contains(k, "credential") {
		return true
	}
	return false
}
