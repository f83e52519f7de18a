package models

// ResultSet holds the ordered rows returned by a SQL execution.
// Columns preserves the select-list order; each row has one value per column.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Empty reports whether the result set contains no rows.
func (r ResultSet) Empty() bool {
	return len(r.Rows) == 0
}
