package export

import "fmt"

// Dataset defines tabular export content. Rows are ordered like Headers.
type Dataset struct {
	Title   string
	Caption []string
	Headers []string
	Rows    [][]string
}

// Validate checks that every row has one cell per header.
func (d Dataset) Validate() error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("dataset requires at least one header")
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(d.Headers))
		}
	}
	return nil
}
