package mailer

import (
	"fmt"
	"sort"
	"strings"
)

// Default placeholder delimiters.
const (
	DefaultLeftDelimiter  = "{"
	DefaultRightDelimiter = "}"
)

// Params maps placeholder names to replacement values.
type Params map[string]any

// Delimiters wrap a placeholder name. An empty side falls back to the
// configured delimiter, then to the default.
type Delimiters struct {
	Left  string
	Right string
}

// or fills empty sides of d from fallback.
func (d Delimiters) or(fallback Delimiters) Delimiters {
	if d.Left == "" {
		d.Left = fallback.Left
	}
	if d.Right == "" {
		d.Right = fallback.Right
	}
	return d
}

func (d Delimiters) orDefault() Delimiters {
	return d.or(Delimiters{Left: DefaultLeftDelimiter, Right: DefaultRightDelimiter})
}

// Substitute replaces every Left+name+Right in content with the matching
// value from params. Replacement is literal and single pass: inserted values
// are never scanned again. When two placeholders start at the same position
// the longer one wins.
func Substitute(content string, params Params, d Delimiters) string {
	if len(params) == 0 || content == "" {
		return content
	}
	d = d.orDefault()

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		placeholder := d.Left + k + d.Right
		if placeholder == "" {
			continue
		}
		pairs = append(pairs, placeholder, stringify(params[k]))
	}
	if len(pairs) == 0 {
		return content
	}

	return strings.NewReplacer(pairs...).Replace(content)
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
