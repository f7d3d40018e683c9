package sqlstore

import "strings"

// SplitStatements breaks a DDL script into executable statements, each keeping
// its terminating semicolon. "--" comments are dropped. A semicolon inside a
// quoted literal or identifier does not end a statement.
func SplitStatements(ddl string) []string {
	var (
		stmts []string
		cur   strings.Builder
		quote byte
	)
	flush := func() {
		if stmt := strings.TrimSpace(cur.String()); stmt != "" && stmt != ";" {
			stmts = append(stmts, stmt)
		}
		cur.Reset()
	}
	for i := 0; i < len(ddl); i++ {
		ch := ddl[i]
		switch {
		case quote != 0:
			// a doubled quote closes and reopens, which leaves it open
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '-' && i+1 < len(ddl) && ddl[i+1] == '-':
			for i+1 < len(ddl) && ddl[i+1] != '\n' {
				i++
			}
			continue
		case ch == ';':
			cur.WriteByte(ch)
			flush()
			continue
		}
		cur.WriteByte(ch)
	}
	flush()
	return stmts
}
