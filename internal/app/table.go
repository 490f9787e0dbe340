package app

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/config"
	"github.com/rbright/dictate/internal/model"
)

var listDevices = audio.ListDevices

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := listDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	rows := make([][]string, 0, len(devices))
	for _, device := range devices {
		mark := ""
		if device.Default {
			mark = "*"
		}
		rows = append(rows, []string{
			mark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		})
	}
	fmt.Fprintln(r.Stdout, renderTable(
		[]string{"", "ID", "Description", "State", "Available", "Muted"},
		rows,
		nil,
	))
	return 0
}

// commandModels lists the catalogue with install state under models_dir.
func (r Runner) commandModels(cfg config.Config) int {
	installed := map[string]bool{}
	for _, info := range model.Installed(cfg.ModelsDir, model.Exists) {
		installed[info.Name] = true
	}

	rows := make([][]string, 0)
	for _, info := range model.Catalog() {
		name := info.Name
		if name == cfg.Model {
			name += " *"
		}
		rows = append(rows, []string{
			name,
			info.SizeLabel(),
			string(info.Languages),
			yesNo(installed[info.Name]),
			info.Description,
		})
	}
	fmt.Fprintln(r.Stdout, renderTable(
		[]string{"Model", "Size", "Languages", "Installed", "Description"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
	return 0
}
