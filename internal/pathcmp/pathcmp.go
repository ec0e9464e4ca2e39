// Package pathcmp provides a fast path-string comparison used on the file
// responder's document-root containment check.
// CPU-feature detection (golang.org/x/sys/cpu) selects a word-at-a-time
// comparison on CPUs with wide registers; everything else falls back to
// plain string equality.
package pathcmp

import "golang.org/x/sys/cpu"

var wideCompareAvailable = cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD

// Equal reports whether a and b are identical. Short strings use plain
// string equality; longer strings prefer a word-at-a-time comparison on
// CPUs that advertise wide-register support.
func Equal(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) < 16 || !wideCompareAvailable {
		return a == b
	}
	return equalWide(a, b)
}

// HasPrefix reports whether s begins with prefix, using Equal's fast path
// on the shared-length slice.
func HasPrefix(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	return Equal(s[:len(prefix)], prefix)
}
