package dispatch

import (
	"fmt"
	"strings"

	"github.com/luigisaetta/oraculum/pkg/models"
)

// tableChunks renders a result set as a markdown table, one chunk per
// line: header, separator, then one chunk per row in input order.
func tableChunks(rs models.ResultSet) []string {
	if len(rs.Columns) == 0 {
		return nil
	}

	chunks := make([]string, 0, len(rs.Rows)+2)
	chunks = append(chunks, "| "+strings.Join(rs.Columns, " | ")+" |\n")

	sep := make([]string, len(rs.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	chunks = append(chunks, "| "+strings.Join(sep, " | ")+" |\n")

	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		chunks = append(chunks, "| "+strings.Join(cells, " | ")+" |\n")
	}
	return chunks
}

// formatValue renders one cell. Integral floats lose the trailing ".0"
// noise the driver introduces for aggregate results.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
