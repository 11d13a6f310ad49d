package objmap

import (
	"strconv"
	"strings"
)

// pathStack builds JSON Pointer paths while a traversal descends.
type pathStack struct {
	parts []string
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func (p *pathStack) field(name string) {
	// escape '~' -> '~0', '/' -> '~1' per RFC6901
	p.parts = append(p.parts, pointerEscaper.Replace(name))
}

func (p *pathStack) index(i int) {
	p.parts = append(p.parts, strconv.Itoa(i))
}

func (p *pathStack) pop() {
	if n := len(p.parts); n > 0 {
		p.parts = p.parts[:n-1]
	}
}

// Pointer renders the current position; the root is "/".
func (p *pathStack) Pointer() string {
	if len(p.parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(p.parts, "/")
}
