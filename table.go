package main

import (
	"fmt"
	"strings"

	"imgadapt/internal/core/domain"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func renderBatch(status domain.BatchStatus, outputDir string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "batch %s: %s (%d/%d processed, %d succeeded, %d failed)\n",
		status.BatchID, status.Status, status.Processed, status.Total, status.Succeeded, status.Failed)
	if status.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", status.Error)
	}
	if len(status.Items) == 0 {
		return b.String()
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Input", "Status", "Result"})

	for i, item := range status.Items {
		result := item.Error
		if item.Status == domain.ItemSuccess {
			result = outputDir + "/" + item.ProducedName
		}
		tw.AppendRow(table.Row{i + 1, item.OriginalName, string(item.Status), result})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
	})

	b.WriteString(tw.Render())
	return b.String()
}
