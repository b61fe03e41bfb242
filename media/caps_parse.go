package media

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyCaps is returned when a caps string holds no structure.
var ErrEmptyCaps = errors.New("media: empty caps")

// CapsSyntaxError reports a malformed caps string.
type CapsSyntaxError struct {
	Input string
	Err   error
}

func (e *CapsSyntaxError) Error() string {
	return fmt.Sprintf("media: parse caps %q: %v", e.Input, e.Err)
}

func (e *CapsSyntaxError) Unwrap() error { return e.Err }

// ParseCaps parses the GStreamer caps serialisation, e.g.
//
//	audio/mpeg, mpegversion=(int)4, rate=(int)48000, channels=(int)2
//
// Typed values use the "(type)" prefix; untyped values are inferred as int,
// fraction, float, boolean or string in that order. Lists written with
// "< >", "{ }" or "[ ]" become []any.
func ParseCaps(s string) (*Caps, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyCaps
	}

	caps := &Caps{}
	for _, part := range splitTopLevel(s, ';') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		st, err := parseStructure(part)
		if err != nil {
			return nil, &CapsSyntaxError{Input: s, Err: err}
		}
		caps.Structures = append(caps.Structures, st)
	}
	if len(caps.Structures) == 0 {
		return nil, ErrEmptyCaps
	}
	return caps, nil
}

// MustParseCaps is ParseCaps for literals known to be valid.
func MustParseCaps(s string) *Caps {
	c, err := ParseCaps(s)
	if err != nil {
		panic(err)
	}
	return c
}

func parseStructure(s string) (*Structure, error) {
	tokens := splitTopLevel(s, ',')
	name := strings.TrimSpace(tokens[0])
	// Drop caps features such as "video/x-raw(memory:SystemMemory)".
	if i := strings.IndexByte(name, '('); i > 0 {
		name = name[:i]
	}
	if name == "" {
		return nil, errors.New("missing structure name")
	}

	st := NewStructure(name)
	for _, tok := range tokens[1:] {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		eq := strings.IndexByte(tok, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("field %q: missing '='", tok)
		}
		key := strings.TrimSpace(tok[:eq])
		v, err := parseValue(strings.TrimSpace(tok[eq+1:]), "")
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		st.Fields[key] = v
	}
	return st, nil
}

func parseValue(raw, typ string) (any, error) {
	if strings.HasPrefix(raw, "(") {
		end := strings.IndexByte(raw, ')')
		if end < 0 {
			return nil, errors.New("unterminated type")
		}
		typ = raw[1:end]
		raw = strings.TrimSpace(raw[end+1:])
	}
	if raw == "" {
		return nil, errors.New("empty value")
	}

	switch raw[0] {
	case '<', '{', '[':
		closer := map[byte]byte{'<': '>', '{': '}', '[': ']'}[raw[0]]
		if raw[len(raw)-1] != closer {
			return nil, fmt.Errorf("unterminated list %q", raw)
		}
		inner := strings.TrimSpace(raw[1 : len(raw)-1])
		out := []any{}
		if inner == "" {
			return out, nil
		}
		for _, e := range splitTopLevel(inner, ',') {
			v, err := parseValue(strings.TrimSpace(e), typ)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return parseScalar(raw, typ)
}

func parseScalar(raw, typ string) (any, error) {
	quoted := len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"'
	if quoted {
		raw = unescape(raw[1 : len(raw)-1])
	}

	switch typ {
	case "int", "i", "gint":
		return strconv.Atoi(raw)
	case "uint", "u", "guint":
		n, err := strconv.ParseUint(raw, 10, 32)
		return uint(n), err
	case "int64", "gint64":
		return strconv.ParseInt(raw, 10, 64)
	case "uint64", "guint64", "bitmask":
		return strconv.ParseUint(raw, 0, 64)
	case "boolean", "bool", "b":
		return parseBool(raw)
	case "fraction":
		return parseFraction(raw)
	case "double", "float", "d", "f", "gdouble":
		return strconv.ParseFloat(raw, 64)
	case "buffer":
		return hex.DecodeString(raw)
	case "string", "s", "gchararray":
		return raw, nil
	case "":
		if quoted {
			return raw, nil
		}
		return infer(raw), nil
	default:
		return raw, nil
	}
}

func infer(raw string) any {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := parseFraction(raw); err == nil {
		return f
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := parseBool(raw); err == nil {
		return b
	}
	return raw
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true", "yes", "t", "1":
		return true, nil
	case "false", "no", "f", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}

func parseFraction(raw string) (Fraction, error) {
	num, den, ok := strings.Cut(raw, "/")
	if !ok {
		return Fraction{}, fmt.Errorf("invalid fraction %q", raw)
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return Fraction{}, err
	}
	d, err := strconv.Atoi(strings.TrimSpace(den))
	if err != nil {
		return Fraction{}, err
	}
	return Fraction{Num: n, Den: d}, nil
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// splitTopLevel splits on sep outside quotes and brackets.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	inQuote, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '<' || c == '{' || c == '[':
			depth++
		case c == '>' || c == '}' || c == ']':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
