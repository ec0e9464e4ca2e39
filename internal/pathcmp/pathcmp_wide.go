package pathcmp

import "unsafe"

// equalWide compares a and b eight bytes at a time. Caller guarantees
// len(a) == len(b).
func equalWide(a, b string) bool {
	n := len(a)
	i := 0
	for ; i+8 <= n; i += 8 {
		wa := *(*uint64)(unsafe.Pointer(unsafe.StringData(a[i : i+8])))
		wb := *(*uint64)(unsafe.Pointer(unsafe.StringData(b[i : i+8])))
		if wa != wb {
			return false
		}
	}
	for ; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
