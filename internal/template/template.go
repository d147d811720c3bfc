// Package template collapses a raw command line into a canonical
// "template" string used for contextual-overlap ranking features. The
// goal is a reduced approximation of the command, stable across cosmetic
// variation in quoting, escaping, and path arguments — it does not
// attempt to fully parse shell grammar.
//
// Possible future enhancements, carried over from the reference this
// algorithm is ported from: sorting/expanding command-line flags, and
// checking whether an unknown token is a valid local path. Neither is
// implemented; both would require more shell-grammar awareness than this
// package intends to have.
package template

import "github.com/rivo/uniseg"

const truncateToNTokens = 2

// Normalize reduces cmd to its template form. When truncate is true, the
// scan stops after the second whitespace-separated token, so the result
// contains at most one space.
//
// Normalize never fails: pathological input (unbalanced quotes, a
// trailing backslash) simply yields whatever template the single-pass
// state machine produces up to end of input.
func Normalize(cmd string, truncate bool) string {
	var (
		inDouble bool
		inSingle bool
		escaped  bool
		buffer   []rune
		result   []rune
		tokens   int
	)

	flush := func(sep rune) {
		if len(result) != 0 && containsSlash(buffer) {
			result = append(result, []rune("PATH")...)
		} else {
			result = append(result, buffer...)
		}
		if sep != 0 {
			result = append(result, sep)
		}
		buffer = buffer[:0]
	}

	gr := uniseg.NewGraphemes(cmd)
scan:
	for gr.Next() {
		g := gr.Runes()
		// Every grapheme cluster we act on below is a single rune; multi-rune
		// clusters (the interesting case uniseg exists for) always fall into
		// the default "append to buffer" branch, preserved intact.
		if len(g) != 1 {
			if !inDouble && !inSingle {
				buffer = append(buffer, g...)
			}
			escaped = false
			continue
		}

		switch g[0] {
		case '\\':
			escaped = true
		case '"':
			switch {
			case escaped:
				escaped = false
			case inDouble:
				inDouble = false
				result = append(result, []rune("QUOTED")...)
			case !inSingle:
				inDouble = true
			}
		case '\'':
			if inSingle {
				inSingle = false
				result = append(result, []rune("QUOTED")...)
			} else if !inDouble {
				inSingle = true
			}
			escaped = false
		case ' ', ':', ',':
			if !inDouble && !inSingle {
				if truncate && g[0] == ' ' {
					tokens++
					if tokens >= truncateToNTokens {
						// Stop scanning, but still fall through to the
						// final flush below so the in-progress token
						// (with no trailing separator) is kept.
						break scan
					}
				}
				flush(g[0])
			}
		default:
			if !inDouble && !inSingle {
				buffer = append(buffer, g[0])
			}
			escaped = false
		}
	}

	flush(0)
	return string(result)
}

func containsSlash(buf []rune) bool {
	for _, r := range buf {
		if r == '/' {
			return true
		}
	}
	return false
}
