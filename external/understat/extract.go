package understat

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	crerr "github.com/cockroachdb/errors"
)

// ExtractVar finds the JSON assigned to the script variable name. It accepts
// the JSON.parse('...') form Understat uses, where the payload is a
// JavaScript string literal full of \xNN escapes, and falls back to a plain
// array literal terminated by "];". found is false when neither form exists.
func ExtractVar(script, name string) (payload []byte, found bool, err error) {
	quoted := regexp.QuoteMeta(name)

	parsePattern := regexp.MustCompile(`var\s+` + quoted + `\s*=\s*JSON\.parse\('([^']*)'\)`)
	if match := parsePattern.FindStringSubmatch(script); match != nil {
		decoded, err := decodeJSString(match[1])
		if err != nil {
			return nil, true, crerr.Wrapf(err, "decode %s string literal", name)
		}
		return decoded, true, nil
	}

	literalPattern := regexp.MustCompile(`(?s)var\s+` + quoted + `\s*=\s*(\[.*?\]);`)
	if match := literalPattern.FindStringSubmatch(script); match != nil {
		return []byte(match[1]), true, nil
	}

	return nil, false, nil
}

// decodeJSString resolves backslash escapes of a single-quoted script
// string. Consecutive \xNN escapes that spell valid UTF-8 are kept as that
// UTF-8 sequence; otherwise each one is read as a Latin-1 code point.
func decodeJSString(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	var run []byte

	flushRun := func() {
		if len(run) == 0 {
			return
		}
		if utf8.Valid(run) {
			out = append(out, run...)
		} else {
			for _, b := range run {
				out = utf8.AppendRune(out, rune(b))
			}
		}
		run = run[:0]
	}

	for i := 0; i < len(s); {
		if s[i] != '\\' {
			flushRun()
			out = append(out, s[i])
			i++
			continue
		}
		if i+1 >= len(s) {
			return nil, crerr.Newf("dangling backslash at offset %d", i)
		}

		esc := s[i+1]
		if esc == 'x' {
			b, err := parseHex(s, i+2, 2)
			if err != nil {
				return nil, err
			}
			run = append(run, byte(b))
			i += 4
			continue
		}
		flushRun()

		switch esc {
		case 'u':
			r, err := parseHex(s, i+2, 4)
			if err != nil {
				return nil, err
			}
			i += 6
			if utf16.IsSurrogate(rune(r)) && strings.HasPrefix(s[i:], `\u`) {
				if low, err := parseHex(s, i+2, 4); err == nil {
					if pair := utf16.DecodeRune(rune(r), rune(low)); pair != utf8.RuneError {
						out = utf8.AppendRune(out, pair)
						i += 6
						continue
					}
				}
			}
			out = utf8.AppendRune(out, rune(r))
		case 'U':
			r, err := parseHex(s, i+2, 8)
			if err != nil {
				return nil, err
			}
			out = utf8.AppendRune(out, rune(r))
			i += 10
		case 'n':
			out = append(out, '\n')
			i += 2
		case 't':
			out = append(out, '\t')
			i += 2
		case 'r':
			out = append(out, '\r')
			i += 2
		case 'b':
			out = append(out, '\b')
			i += 2
		case 'f':
			out = append(out, '\f')
			i += 2
		case 'v':
			out = append(out, '\v')
			i += 2
		case 'a':
			out = append(out, '\a')
			i += 2
		case '\\', '\'', '"':
			out = append(out, esc)
			i += 2
		case '\n':
			i += 2
		default:
			if esc >= '0' && esc <= '7' {
				end := i + 1
				for end < len(s) && end < i+4 && s[end] >= '0' && s[end] <= '7' {
					end++
				}
				v, _ := strconv.ParseUint(s[i+1:end], 8, 32)
				out = utf8.AppendRune(out, rune(v))
				i = end
				continue
			}
			// Unknown escapes keep their backslash.
			out = append(out, '\\', esc)
			i += 2
		}
	}
	flushRun()

	return out, nil
}

func parseHex(s string, start, width int) (uint64, error) {
	if start+width > len(s) {
		return 0, crerr.Newf("truncated escape at offset %d", start-2)
	}
	v, err := strconv.ParseUint(s[start:start+width], 16, 32)
	if err != nil {
		return 0, crerr.Newf("invalid escape %q at offset %d", s[start-2:start+width], start-2)
	}
	return v, nil
}
