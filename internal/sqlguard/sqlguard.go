// Package sqlguard is the read-only gate in front of every SQL execution.
// It accepts only a single SELECT, or a WITH whose final statement is a
// SELECT.
//
// The statement is lexed twice: once with the sqlparser tokenizer and once
// with SQLite's own quoting and comment rules, and it must pass under both.
// The two dialects disagree on backslash escapes, '#' and '//' comments and
// bracketed identifiers, so either view alone can be fooled.
package sqlguard

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// SecurityError is returned for any statement that is not a plain read.
type SecurityError struct {
	SQL    string
	Reason string
	Token  string // offending token, when there is one
}

func (e *SecurityError) Error() string {
	msg := "query rejected: modification attempts are blocked: " + e.Reason
	if e.Token != "" {
		msg += fmt.Sprintf(" (near %q)", e.Token)
	}
	return msg
}

// denied words are rejected anywhere outside a string literal or comment.
var denied = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "UPSERT": true, "INTO": true,
	"DROP": true, "ALTER": true, "CREATE": true, "TRUNCATE": true, "REINDEX": true, "VACUUM": true,
	"COPY": true, "ATTACH": true, "DETACH": true, "PRAGMA": true, "LOAD": true, "LOAD_EXTENSION": true,
	"INSTALL": true, "EXPORT": true, "IMPORT": true,
	"GRANT": true, "REVOKE": true, "CALL": true, "EXEC": true, "EXECUTE": true,
	"BEGIN": true, "COMMIT": true, "ROLLBACK": true, "SAVEPOINT": true, "RELEASE": true,
}

// cteModifiers may sit between a CTE's closing paren or column list and
// what follows it.
var cteModifiers = map[string]bool{"AS": true, "NOT": true, "MATERIALIZED": true}

type kind int

const (
	kindWord    kind = iota // bare identifier or keyword
	kindLiteral             // string, number, blob, parameter or quoted identifier
	kindPunct
)

type token struct {
	kind kind
	text string
}

func (t token) word() string { return strings.ToUpper(t.text) }

func (t token) is(word string) bool { return t.kind == kindWord && t.word() == word }

func (t token) punct(ch string) bool { return t.kind == kindPunct && t.text == ch }

// Validate returns nil if sql is a single read-only statement and a
// *SecurityError otherwise. It has no side effects.
func Validate(sql string) error {
	for _, lex := range []func(string) ([]token, error){lexMySQL, lexSQLite} {
		toks, err := lex(sql)
		if err != nil {
			return &SecurityError{SQL: sql, Reason: "statement could not be tokenized", Token: err.Error()}
		}
		if err := check(sql, toks); err != nil {
			return err
		}
	}
	return nil
}

func check(sql string, toks []token) error {
	reject := func(reason, tok string) error {
		return &SecurityError{SQL: sql, Reason: reason, Token: tok}
	}

	for i, t := range toks {
		if t.punct(";") {
			if i != len(toks)-1 {
				return reject("multiple statements are not allowed", toks[i+1].text)
			}
			toks = toks[:i]
			break
		}
		if t.kind == kindWord && denied[t.word()] {
			return reject("statement contains a write or administrative keyword", t.word())
		}
	}
	if len(toks) == 0 {
		return reject("empty statement", "")
	}

	switch first := toks[0]; {
	case first.is("SELECT"):
		return nil
	case first.is("WITH"):
		return checkWith(sql, toks)
	default:
		return reject("only SELECT or WITH ... SELECT statements are allowed", first.text)
	}
}

// checkWith finds the statement after the last common table expression and
// requires it to be a SELECT.
func checkWith(sql string, toks []token) error {
	depth := 0
	afterClose := false
	for _, t := range toks[1:] {
		switch {
		case t.punct("("):
			depth++
			afterClose = false
			continue
		case t.punct(")"):
			depth--
			if depth < 0 {
				return &SecurityError{SQL: sql, Reason: "unbalanced parentheses", Token: ")"}
			}
			afterClose = depth == 0
			continue
		}
		if depth > 0 || !afterClose {
			continue
		}
		if t.punct(",") {
			afterClose = false
			continue
		}
		if t.kind == kindWord && cteModifiers[t.word()] {
			continue
		}
		if t.is("SELECT") {
			return nil
		}
		return &SecurityError{SQL: sql, Reason: "WITH must end in a SELECT", Token: t.text}
	}
	return &SecurityError{SQL: sql, Reason: "WITH has no final SELECT", Token: ""}
}

// lexMySQL returns significant tokens as the sqlparser tokenizer sees them,
// comments removed.
func lexMySQL(sql string) ([]token, error) {
	tkn := sqlparser.NewStringTokenizer(sql)
	var toks []token
	for {
		id, val := tkn.Scan()
		switch id {
		case 0:
			return toks, nil
		case sqlparser.LEX_ERROR:
			return nil, fmt.Errorf("%s", val)
		case sqlparser.COMMENT:
			continue
		case sqlparser.STRING, sqlparser.INTEGRAL, sqlparser.FLOAT, sqlparser.HEXNUM,
			sqlparser.HEX, sqlparser.BIT_LITERAL, sqlparser.VALUE_ARG, sqlparser.LIST_ARG:
			toks = append(toks, token{kind: kindLiteral, text: string(val)})
			continue
		}
		switch {
		case len(val) > 0:
			toks = append(toks, token{kind: kindWord, text: string(val)})
		case id < 256:
			toks = append(toks, token{kind: kindPunct, text: string(rune(id))})
		default:
			// Multi-character operators such as <= or ||.
			toks = append(toks, token{kind: kindPunct, text: "op"})
		}
	}
}
