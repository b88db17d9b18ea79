package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderTable prints a pretty table to stdout
func RenderTable(headers []string, rows [][]interface{}) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)

	headerRow := table.Row{}
	for _, h := range headers {
		headerRow = append(headerRow, h)
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		t.AppendRow(table.Row(row))
	}

	t.Render()
}

// RenderKV prints label/value pairs as a two-column table.
func RenderKV(title string, pairs [][2]interface{}) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	if title != "" {
		t.SetTitle(title)
	}
	for _, p := range pairs {
		t.AppendRow(table.Row{p[0], p[1]})
	}
	t.Render()
}

// PrintJSON prints v indented.
func PrintJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(string(b))
}
