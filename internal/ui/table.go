package ui

import (
	"os"

	"github.com/olekukonko/tablewriter"
)

// NewTable returns a tablewriter table with the house style applied:
// plain borders, left-aligned cells, no row wrapping.
func NewTable(headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(true)
	return table
}

// KPITable prints metric/value pairs, used by the status command.
func KPITable(pairs [][2]string) {
	table := NewTable("Metric", "Value")
	for _, pair := range pairs {
		table.Append([]string{pair[0], pair[1]})
	}
	table.Render()
}
