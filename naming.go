package objmap

import (
	"strings"
	"unicode"
)

// NamingStrategy derives a document name from a Go member name. It only applies
// to members without an explicit name.
type NamingStrategy func(goName string) string

var (
	// LowerCamelCase turns "HTTPServer" into "httpServer". It is the default.
	LowerCamelCase NamingStrategy = lowerCamel
	// UpperCamelCase keeps the Go name ("HTTPServer").
	UpperCamelCase NamingStrategy = func(s string) string { return s }
	// SnakeCase turns "HTTPServer" into "http_server".
	SnakeCase NamingStrategy = func(s string) string { return joinWords(s, '_') }
	// KebabCase turns "HTTPServer" into "http-server".
	KebabCase NamingStrategy = func(s string) string { return joinWords(s, '-') }
)

func lowerCamel(s string) string {
	r := []rune(s)
	n := 0
	for n < len(r) && unicode.IsUpper(r[n]) {
		n++
	}
	switch {
	case n == 0:
		return s
	case n == 1 || n == len(r):
	default:
		// keep the last capital of an acronym when a word follows: "HTTPServer"
		if unicode.IsLower(r[n]) {
			n--
		}
	}
	for i := 0; i < n; i++ {
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}

// words splits a Go identifier at case changes, keeping acronyms together.
func words(s string) []string {
	r := []rune(s)
	var out []string
	start := 0
	for i := 1; i < len(r); i++ {
		prev, cur := r[i-1], r[i]
		boundary := false
		switch {
		case cur == '_':
			if i > start {
				out = append(out, string(r[start:i]))
			}
			start = i + 1
			continue
		case unicode.IsLower(prev) && unicode.IsUpper(cur):
			boundary = true
		case unicode.IsDigit(prev) && unicode.IsUpper(cur):
			boundary = true
		case unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(r) && unicode.IsLower(r[i+1]):
			boundary = true
		}
		if boundary && i > start {
			out = append(out, string(r[start:i]))
			start = i
		}
	}
	if start < len(r) {
		out = append(out, string(r[start:]))
	}
	return out
}

func joinWords(s string, sep byte) string {
	ws := words(s)
	for i, w := range ws {
		ws[i] = strings.ToLower(w)
	}
	return strings.Join(ws, string(sep))
}
