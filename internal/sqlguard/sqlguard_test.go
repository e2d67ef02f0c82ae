package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Accepts(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM transactions",
		"select ai_category, COUNT(*) AS n FROM transactions WHERE amount < 0 GROUP BY ai_category ORDER BY n DESC LIMIT 10",
		"SELECT updated_at, created_by, deleted_flag FROM t",
		"SELECT 'DROP TABLE transactions' AS label",
		"SELECT description FROM transactions WHERE description LIKE '%insert%'",
		"SELECT replace(description, 'POS ', '') FROM transactions",
		"SELECT month, SUM(amount) FROM transactions GROUP BY month;",
		"SELECT 1 -- delete everything",
		"SELECT 1; /* trailing */",
		"/* leading */ SELECT 1",
		"WITH m AS (SELECT month, SUM(amount) AS s FROM t GROUP BY month) SELECT * FROM m ORDER BY s",
		"WITH a AS (SELECT 1 AS x), b(y) AS (SELECT x FROM a) SELECT y FROM b",
		"WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM c WHERE x < 5) SELECT x FROM c",
		"SELECT * FROM (SELECT amount FROM t) sub WHERE amount > 100",
		"SELECT 'it''s' AS s",
		`SELECT "ai_category", COUNT(*) FROM transactions GROUP BY 1`,
		"SELECT description FROM transactions WHERE description LIKE '%100\\%'",
		"SELECT amount FROM t WHERE amount <= -1.5e+2 OR amount >= .5",
	} {
		assert.NoError(t, Validate(sql), sql)
	}
}

func TestValidate_Rejects(t *testing.T) {
	for _, sql := range []string{
		"DROP TABLE transactions",
		"drop table transactions",
		"DELETE FROM transactions",
		"UPDATE transactions SET amount = 0",
		"INSERT INTO transactions VALUES (1)",
		"CREATE TABLE x (a)",
		"ALTER TABLE transactions ADD COLUMN x",
		"PRAGMA query_only = OFF",
		"ATTACH DATABASE 'other.db' AS o",
		"VACUUM",
		"BEGIN",
		"select * from t; delete from t",
		"SELECT 1; SELECT 2",
		"SELECT 1; /* */ DROP TABLE t",
		"SELECT * INTO backup FROM transactions",
		"SELECT load_extension('evil.so')",
		"/* comment */ DELETE FROM t",
		"DE/**/LETE FROM t",
		"SEL/**/ECT 1",
		"EXPLAIN SELECT 1",
		"VALUES (1)",
		"'SELECT'",
		"WITH x AS (SELECT 1) DELETE FROM t",
		"WITH x AS (SELECT 1) VALUES (1)",
		"WITH x AS (SELECT 1)",
		"WITH x AS (SELECT 1)) SELECT 1",
		"SELECT * FROM t WHERE description = 'unterminated",
		"SELECT 1 /* unterminated",
		"",
		"   ",
		"-- only a comment",
		";",
		// Backslash is not an escape in SQLite, so these quotes close early.
		`SELECT 'a\'; PRAGMA query_only = OFF; DELETE FROM transactions; --'`,
		`SELECT 'a\'; DELETE FROM transactions; --'`,
		`SELECT 'a\' UNION SELECT 1; DROP TABLE transactions; --'`,
		`SELECT "a\"; DELETE FROM transactions; --"`,
		// Comment styles SQLite does not have.
		"SELECT 1 # ; DROP TABLE transactions",
		"SELECT 1 // ; DROP TABLE transactions",
		"/*! DELETE FROM transactions */ SELECT 1",
		"SELECT [x'] FROM t; DELETE FROM t; --']",
		"SELECT * FROM t WHERE amount > ?",
		"SELECT $a",
		"SELECT 1\x00; DROP TABLE t",
	} {
		err := Validate(sql)
		var serr *SecurityError
		if assert.ErrorAs(t, err, &serr, "%q should be rejected", sql) {
			assert.Equal(t, sql, serr.SQL)
		}
	}
}

func TestSecurityError_Message(t *testing.T) {
	err := Validate("DROP TABLE transactions")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "modification attempts are blocked")
	assert.Contains(t, err.Error(), `"DROP"`)

	var serr *SecurityError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "DROP", serr.Token)
}

func TestValidate_MultipleStatementsReason(t *testing.T) {
	var serr *SecurityError
	require.ErrorAs(t, Validate("SELECT 1; SELECT 2"), &serr)
	assert.Contains(t, serr.Reason, "multiple statements")
}

func TestLexSQLite_QuotesEndAtUndoubledDelimiter(t *testing.T) {
	toks, err := lexSQLite(`SELECT 'a\'; DELETE FROM t; --'`)
	require.NoError(t, err)

	var texts []string
	for _, tok := range toks {
		texts = append(texts, tok.text)
	}
	assert.Equal(t, []string{"SELECT", `'a\'`, ";", "DELETE", "FROM", "t", ";"}, texts)

	toks, err = lexSQLite(`SELECT 'it''s', "a""b", [c d] -- tail`)
	require.NoError(t, err)
	require.Len(t, toks, 6)
	assert.Equal(t, token{kind: kindLiteral, text: `'it''s'`}, toks[1])
	assert.Equal(t, token{kind: kindLiteral, text: `"a""b"`}, toks[3])
	assert.Equal(t, token{kind: kindLiteral, text: "[c d]"}, toks[5])
}

func TestValidate_BothDialectsMustAccept(t *testing.T) {
	// The sqlparser tokenizer alone reads these as one SELECT.
	for _, sql := range []string{
		`SELECT 'a\'; DELETE FROM transactions; --'`,
		"SELECT 1 # ; DROP TABLE transactions",
	} {
		mysql, err := lexMySQL(sql)
		require.NoError(t, err)
		assert.NoError(t, check(sql, mysql), sql)

		var serr *SecurityError
		require.ErrorAs(t, Validate(sql), &serr, sql)
	}
}
