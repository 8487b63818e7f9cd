package utils

// NameHash is a cheap 32-bit string hash, stable across runs. Only the low
// byte of every rune takes part.
func NameHash(str string, initial uint32) uint32 {
	hash := initial
	for _, c := range str {
		sym := uint32(byte(c))
		hash = (hash << 7) - hash + sym
	}

	return hash
}
