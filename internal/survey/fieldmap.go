package survey

// FieldMap is an insertion-ordered mapping from field label to extracted
// value. The zero value is ready to use.
type FieldMap struct {
	keys   []string
	values map[string]string
}

// NewFieldMap creates an empty FieldMap
func NewFieldMap() *FieldMap {
	return &FieldMap{values: make(map[string]string)}
}

// FieldMapFromPairs builds a FieldMap from alternating label/value
// arguments. A trailing label without a value maps to "".
func FieldMapFromPairs(pairs ...string) *FieldMap {
	m := NewFieldMap()
	for i := 0; i < len(pairs); i += 2 {
		value := ""
		if i+1 < len(pairs) {
			value = pairs[i+1]
		}
		m.Set(pairs[i], value)
	}
	return m
}

// Set stores value under label. Replacing an existing label keeps its
// original position.
func (m *FieldMap) Set(label, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, exists := m.values[label]; !exists {
		m.keys = append(m.keys, label)
	}
	m.values[label] = value
}

// Get returns the value stored under label
func (m *FieldMap) Get(label string) (string, bool) {
	if m == nil || m.values == nil {
		return "", false
	}
	v, ok := m.values[label]
	return v, ok
}

// Has reports whether label is present
func (m *FieldMap) Has(label string) bool {
	_, ok := m.Get(label)
	return ok
}

// Len returns the number of labels
func (m *FieldMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the labels in insertion order
func (m *FieldMap) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}
