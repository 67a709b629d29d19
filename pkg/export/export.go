package export

// Dataset is the tabular payload fed to the exporters. Headers fix the
// column order; each row maps header name to cell text, missing cells
// render empty.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// cells flattens a row into the header order.
func (d Dataset) cells(row map[string]string) []string {
	out := make([]string, len(d.Headers))
	for i, h := range d.Headers {
		out[i] = row[h]
	}
	return out
}
