// Package util holds string helpers shared by the header codecs.
package util

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// LCase lower-cases ASCII and Unicode letters of s.
func LCase[T ~string](s T) T { return T(strings.ToLower(string(s))) }

// EqFold reports whether a and b are equal under simple case folding.
// Forwarded parameter names and MIME field names compare this way.
func EqFold[A, B ~string](a A, b B) bool {
	return strings.EqualFold(string(a), string(b))
}

// TrimOWS trims optional whitespace (SP, HTAB) and line breaks around s.
func TrimOWS[T ~string](s T) T { return T(strings.Trim(string(s), " \t\r\n")) }

// Ellipsis shortens s to at most n runes for error messages and logs.
func Ellipsis(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	var i int
	for k := range s {
		if n == 0 {
			i = k
			break
		}
		n--
	}
	return s[:i] + "..."
}

const maxPooledBuilder = 1 << 16

var builders = sync.Pool{
	New: func() any {
		sb := new(strings.Builder)
		sb.Grow(128)
		return sb
	},
}

// GetStringBuilder returns an empty builder from the pool.
func GetStringBuilder() *strings.Builder {
	return builders.Get().(*strings.Builder) //nolint:forcetypeassert
}

// FreeStringBuilder returns sb to the pool. Oversized builders are dropped.
func FreeStringBuilder(sb *strings.Builder) {
	if sb.Cap() > maxPooledBuilder {
		return
	}
	sb.Reset()
	builders.Put(sb)
}
