package main

import (
	"fmt"
	"strings"
)

// generateCreateTable produces an idempotent CREATE TABLE statement for t.
func generateCreateTable(d StoreDialect, t storeTable) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", d.QuoteIdentifier(t.Name))

	for _, col := range t.Columns {
		colType := d.TextType()
		if isKeyColumn(col.Name) {
			colType = d.KeyType()
		}
		fmt.Fprintf(&b, "  %s %s", d.QuoteIdentifier(col.Name), colType)
		if col.NotNull {
			b.WriteString(" NOT NULL")
		}
		b.WriteString(",\n")
	}

	fmt.Fprintf(&b, "  PRIMARY KEY (%s)\n)", quoteColumns(d, keyColumns))
	return b.String()
}

// generateUpsert produces the insert-or-replace statement for t. The
// statement overwrites every non-key column of an existing row.
func generateUpsert(d StoreDialect, t storeTable) string {
	return d.UpsertSQL(t.Name, t.columnNames())
}

func quoteColumns(d StoreDialect, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(d StoreDialect, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = d.Placeholder(i + 1)
	}
	return strings.Join(ph, ", ")
}
