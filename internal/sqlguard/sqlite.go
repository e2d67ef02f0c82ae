package sqlguard

import (
	"errors"
	"fmt"
	"strings"
)

// lexSQLite splits sql into tokens the way SQLite's tokenizer does for the
// parts that decide statement structure: quotes end only at an undoubled
// delimiter, backslash is an ordinary character, and the only comments are
// -- and /* */. Bind parameters are refused outright since nothing here
// ever binds them.
func lexSQLite(sql string) ([]token, error) {
	var toks []token
	s := sql
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == 0:
			return nil, errors.New("NUL byte in statement")
		case isSpace(c):
			i++
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := indexFrom(s, "*/", i+2)
			if end < 0 {
				return nil, errors.New("unterminated comment")
			}
			i = end + 2
		case c == '\'':
			end, err := closeQuote(s, i, '\'')
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: kindLiteral, text: s[i:end]})
			i = end
		case c == '"' || c == '`':
			end, err := closeQuote(s, i, c)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: kindLiteral, text: s[i:end]})
			i = end
		case c == '[':
			end := indexFrom(s, "]", i+1)
			if end < 0 {
				return nil, errors.New("unterminated bracketed identifier")
			}
			toks = append(toks, token{kind: kindLiteral, text: s[i : end+1]})
			i = end + 1
		case (c == 'x' || c == 'X') && i+1 < len(s) && s[i+1] == '\'':
			j := i + 2
			for j < len(s) && isHex(s[j]) {
				j++
			}
			if j >= len(s) || s[j] != '\'' {
				return nil, errors.New("malformed blob literal")
			}
			toks = append(toks, token{kind: kindLiteral, text: s[i : j+1]})
			i = j + 1
		case isDigit(c) || (c == '.' && i+1 < len(s) && isDigit(s[i+1])):
			j := i + 1
			for j < len(s) {
				d := s[j]
				if isIDChar(d) || d == '.' || ((d == '+' || d == '-') && (s[j-1] == 'e' || s[j-1] == 'E')) {
					j++
					continue
				}
				break
			}
			toks = append(toks, token{kind: kindLiteral, text: s[i:j]})
			i = j
		case isIDStart(c):
			j := i + 1
			for j < len(s) && isIDChar(s[j]) {
				j++
			}
			toks = append(toks, token{kind: kindWord, text: s[i:j]})
			i = j
		case c == '?' || c == ':' || c == '@' || c == '$' || c == '#':
			return nil, fmt.Errorf("bind parameter %q not allowed", string(c))
		default:
			toks = append(toks, token{kind: kindPunct, text: string(c)})
			i++
		}
	}
	return toks, nil
}

// closeQuote returns the offset just past the quote opened at s[start].
// A doubled delimiter is an escaped delimiter.
func closeQuote(s string, start int, delim byte) (int, error) {
	for i := start + 1; i < len(s); i++ {
		if s[i] != delim {
			continue
		}
		if i+1 < len(s) && s[i+1] == delim {
			i++
			continue
		}
		return i + 1, nil
	}
	return 0, fmt.Errorf("unterminated %c quote", delim)
}

func indexFrom(s, sub string, from int) int {
	if n := strings.Index(s[from:], sub); n >= 0 {
		return from + n
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIDStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c >= 0x80
}

func isIDChar(c byte) bool { return isIDStart(c) || isDigit(c) || c == '$' }
