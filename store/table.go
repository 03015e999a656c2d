package store

import "github.com/stevemurr/simple-item-server/record"

// tabulate lays items out as a header plus rows. The header is the first
// item's key order.
func tabulate(items []record.Item) (header []string, rows [][]string) {
	if len(items) == 0 {
		return nil, nil
	}
	header = items[0].Keys()
	rows = make([][]string, 0, len(items))
	for _, it := range items {
		row := make([]string, len(header))
		for i, k := range header {
			row[i] = it.Value(k)
		}
		rows = append(rows, row)
	}
	return header, rows
}

// untabulate is the inverse of tabulate. Short rows get empty cells, cells
// past the header are ignored.
func untabulate(header []string, rows [][]string) []record.Item {
	items := make([]record.Item, 0, len(rows))
	for _, row := range rows {
		it := record.New()
		for i, k := range header {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			it.Set(k, v)
		}
		items = append(items, it)
	}
	return items
}

// project returns the items exactly as they would read back after a Save.
func project(items []record.Item) []record.Item {
	return untabulate(tabulate(items))
}
