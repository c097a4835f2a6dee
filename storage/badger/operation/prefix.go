package operation

const (

	// codes for singleton state
	codeLatestRelease = 1 // the latest resolved client release

	// codes for indexing entities by key
	codeCandidate = 10 // monitored candidates, keyed by name
)

// makePrefix builds a storage key from a prefix code and an optional set of
// segments identifying the entity.
func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, keyPartToBinary(key)...)
	}
	return prefix
}

func keyPartToBinary(v interface{}) []byte {
	switch i := v.(type) {
	case string:
		return []byte(i)
	case []byte:
		return i
	default:
		panic("unsupported type to convert to binary")
	}
}
