package main

import (
	"fmt"
	"os"
	"strings"
)

// hookFile is a SQL file run inside the batch transaction.
type hookFile struct {
	Path       string
	Statements []string
}

// storeHooks holds the SQL run before the first and after the last record.
type storeHooks struct {
	BeforeData []hookFile
	AfterData  []hookFile
}

// loadHooks reads every configured hook file up front so a missing file fails
// the run before any record is written.
func loadHooks(cfg *MigrationConfig) (storeHooks, error) {
	var h storeHooks
	var err error
	if h.BeforeData, err = readHookFiles(cfg, cfg.Hooks.BeforeData, "before_data"); err != nil {
		return storeHooks{}, err
	}
	if h.AfterData, err = readHookFiles(cfg, cfg.Hooks.AfterData, "after_data"); err != nil {
		return storeHooks{}, err
	}
	return h, nil
}

func readHookFiles(cfg *MigrationConfig, files []string, phase string) ([]hookFile, error) {
	var hooks []hookFile
	for _, f := range files {
		data, err := os.ReadFile(cfg.resolvePath(f))
		if err != nil {
			return nil, fmt.Errorf("hook %s: read %s: %w", phase, f, err)
		}
		hooks = append(hooks, hookFile{Path: f, Statements: splitStatements(string(data))})
	}
	return hooks, nil
}

// splitStatements splits hook SQL on semicolons. Semicolons inside
// single-quoted literals, double-quoted identifiers, -- and /* */ comments
// (nested) and PostgreSQL dollar-quoted bodies do not end a statement.
func splitStatements(sql string) []string {
	var stmts []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false
	inLineComment := false
	blockCommentDepth := 0
	dollarTag := ""

	for i := 0; i < len(sql); i++ {
		c := sql[i]

		if inLineComment {
			current.WriteByte(c)
			if c == '\n' {
				inLineComment = false
			}
			continue
		}

		if blockCommentDepth > 0 {
			current.WriteByte(c)
			if c == '/' && i+1 < len(sql) && sql[i+1] == '*' {
				current.WriteByte(sql[i+1])
				i++
				blockCommentDepth++
				continue
			}
			if c == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				current.WriteByte(sql[i+1])
				i++
				blockCommentDepth--
			}
			continue
		}

		if inSingleQuote || inDoubleQuote {
			quote := byte('\'')
			if inDoubleQuote {
				quote = '"'
			}
			current.WriteByte(c)
			if c == quote {
				// A doubled quote is an escaped quote.
				if i+1 < len(sql) && sql[i+1] == quote {
					current.WriteByte(sql[i+1])
					i++
				} else {
					inSingleQuote, inDoubleQuote = false, false
				}
			}
			continue
		}

		if dollarTag != "" {
			if strings.HasPrefix(sql[i:], dollarTag) {
				current.WriteString(dollarTag)
				i += len(dollarTag) - 1
				dollarTag = ""
				continue
			}
			current.WriteByte(c)
			continue
		}

		switch {
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			current.WriteString("--")
			i++
			inLineComment = true
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			current.WriteString("/*")
			i++
			blockCommentDepth = 1
		case c == '\'':
			current.WriteByte(c)
			inSingleQuote = true
		case c == '"':
			current.WriteByte(c)
			inDoubleQuote = true
		case c == '$':
			if tag, ok := parseDollarTag(sql, i); ok {
				current.WriteString(tag)
				i += len(tag) - 1
				dollarTag = tag
				continue
			}
			current.WriteByte(c)
		case c == ';':
			if s := strings.TrimSpace(current.String()); s != "" {
				stmts = append(stmts, s)
			}
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

// parseDollarTag returns the $$ or $tag$ opener starting at sql[i].
func parseDollarTag(sql string, i int) (string, bool) {
	if i >= len(sql) || sql[i] != '$' {
		return "", false
	}
	if i+1 < len(sql) && sql[i+1] == '$' {
		return "$$", true
	}
	j := i + 1
	if j >= len(sql) || !isDollarTagStart(sql[j]) {
		return "", false
	}
	for j < len(sql) && isDollarTagChar(sql[j]) {
		j++
	}
	if j < len(sql) && sql[j] == '$' {
		return sql[i : j+1], true
	}
	return "", false
}

func isDollarTagStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDollarTagChar(c byte) bool {
	return isDollarTagStart(c) || (c >= '0' && c <= '9')
}
