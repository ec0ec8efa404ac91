package formats

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedEntities is returned for unbalanced or unterminated entity text.
var ErrMalformedEntities = errors.New("malformed entity string")

// Entity is one block of key/value pairs from the entity lump.
type Entity map[string]string

// ClassName returns the entity's class.
func (e Entity) ClassName() string { return e["classname"] }

// Float returns the numeric value of key, or def when absent or invalid.
func (e Entity) Float(key string, def float64) float64 {
	v, ok := e[key]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

// Int returns the integer value of key, or def when absent or invalid.
// Hex and octal prefixes are accepted.
func (e Entity) Int(key string, def int) int {
	v, ok := e[key]
	if !ok {
		return def
	}
	i, err := strconv.ParseInt(strings.TrimSpace(v), 0, 64)
	if err != nil {
		return def
	}
	return int(i)
}

// ParseEntities splits the entity lump into entities.
func ParseEntities(s string) ([]Entity, error) {
	var (
		out []Entity
		cur Entity
		key string
	)
	haveKey := false
	t := tokenizer{s: s}

	for {
		tok, quoted, ok := t.next()
		if !ok {
			break
		}
		switch {
		case !quoted && tok == "{":
			if cur != nil {
				return nil, fmt.Errorf("%w: nested entity at offset %d", ErrMalformedEntities, t.pos)
			}
			cur = Entity{}
		case !quoted && tok == "}":
			if cur == nil || haveKey {
				return nil, fmt.Errorf("%w: unexpected '}' at offset %d", ErrMalformedEntities, t.pos)
			}
			out = append(out, cur)
			cur = nil
		case cur == nil:
			return nil, fmt.Errorf("%w: %q outside entity", ErrMalformedEntities, tok)
		case !haveKey:
			key, haveKey = tok, true
		default:
			cur[key] = tok
			haveKey = false
		}
	}
	if t.err != nil {
		return nil, t.err
	}
	if cur != nil {
		return nil, fmt.Errorf("%w: unterminated entity", ErrMalformedEntities)
	}
	return out, nil
}

// Worldspawn returns the worldspawn entity, or an empty entity.
func Worldspawn(entities []Entity) Entity {
	for _, e := range entities {
		if e.ClassName() == "worldspawn" {
			return e
		}
	}
	return Entity{}
}

// LuxelSize returns the world units per lightmap luxel declared by the
// worldspawn, or def.
func LuxelSize(world Entity, def int) int {
	for _, key := range []string{"luxel_size", "lightmap_scale"} {
		if v := world.Int(key, 0); v > 0 {
			return v
		}
	}
	return def
}

type tokenizer struct {
	s   string
	pos int
	err error
}

// next returns the next token and whether it was quoted.
func (t *tokenizer) next() (string, bool, bool) {
	for t.pos < len(t.s) {
		c := t.s[t.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == 0:
			t.pos++
		case c == '/' && strings.HasPrefix(t.s[t.pos:], "//"):
			if nl := strings.IndexByte(t.s[t.pos:], '\n'); nl >= 0 {
				t.pos += nl + 1
			} else {
				t.pos = len(t.s)
			}
		case c == '"':
			end := strings.IndexByte(t.s[t.pos+1:], '"')
			if end < 0 {
				t.err = fmt.Errorf("%w: unterminated quote at offset %d", ErrMalformedEntities, t.pos)
				t.pos = len(t.s)
				return "", false, false
			}
			tok := t.s[t.pos+1 : t.pos+1+end]
			t.pos += end + 2
			return tok, true, true
		case c == '{' || c == '}':
			t.pos++
			return string(c), false, true
		default:
			start := t.pos
			for t.pos < len(t.s) && !strings.ContainsRune(" \t\r\n{}\"", rune(t.s[t.pos])) {
				t.pos++
			}
			return t.s[start:t.pos], false, true
		}
	}
	return "", false, false
}
