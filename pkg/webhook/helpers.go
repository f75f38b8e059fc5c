package webhook

func nestedString(data map[string]any, outerKey, innerKey string) string {
	outer, ok := data[outerKey].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := outer[innerKey].(string)
	return s
}

func nestedValue(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	return m[key]
}

func asString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func asBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}
