package main

import (
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"podigest/internal/episodes"
	"podigest/internal/proxypool"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const maxTitleWidth = 48

// renderTable draws rows under headers. widths caps individual columns; a
// missing or zero entry leaves the column unbounded so paths stay on one line.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment, widths []int) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		cfg := table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		}
		if i < len(widths) && widths[i] > 0 {
			cfg.WidthMax = widths[i]
		}
		columnConfigs = append(columnConfigs, cfg)
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

var episodeHeaders = []string{"ID", "Podcast", "Title", "Published", "Attempts", "Last failure"}

var episodeAligns = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}

var episodeWidths = []int{0, 0, maxTitleWidth}

func episodeRows(list []*episodes.Episode) [][]string {
	rows := make([][]string, 0, len(list))
	for _, ep := range list {
		rows = append(rows, []string{
			strconv.FormatInt(ep.ID, 10),
			ep.PodcastName,
			text.Trim(ep.Title, maxTitleWidth),
			yesNo(ep.Published),
			strconv.Itoa(ep.Attempts),
			ep.LastFailureReason,
		})
	}
	return rows
}

var proxyHeaders = []string{"Proxy", "Health", "Last tested"}

func proxyRows(records []proxypool.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		tested := "-"
		if !rec.LastTested.IsZero() {
			tested = rec.LastTested.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{rec.Address, string(rec.Health), tested})
	}
	return rows
}
