package gatesession

// Values is the request context: a mutable bag of JSON-serialisable values
// backed by the session data. The whole bag replaces the stored data on save.
type Values map[string]any

// Get returns the value stored under key.
func (v Values) Get(key string) (any, bool) {
	val, ok := v[key]
	return val, ok
}

// String returns the value under key if it is a string.
func (v Values) String(key string) (string, bool) {
	s, ok := v[key].(string)
	return s, ok
}

func (v Values) Set(key string, value any) { v[key] = value }

func (v Values) Delete(key string) { delete(v, key) }

// Pop removes key and returns its value, or fallback when the key is absent.
func (v Values) Pop(key string, fallback any) any {
	val, ok := v[key]
	if !ok {
		return fallback
	}
	delete(v, key)
	return val
}

// Clear empties the bag.
func (v Values) Clear() { clear(v) }

func (v Values) Len() int { return len(v) }
