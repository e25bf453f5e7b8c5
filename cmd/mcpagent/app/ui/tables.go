// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ui renders CLI tables.
package ui

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wanquanY/Plan-A-sub001/pkg/catalog"
	"github.com/wanquanY/Plan-A-sub001/pkg/storage"
	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
)

func newTable(out io.Writer, headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.Options(
		tablewriter.WithHeader(headers),
		tablewriter.WithRendition(
			tw.Rendition{
				Borders: tw.Border{
					Left:   tw.State(1),
					Top:    tw.State(1),
					Right:  tw.State(1),
					Bottom: tw.State(1),
				},
			},
		),
		tablewriter.WithAlignment(tw.MakeAlign(len(headers), tw.AlignLeft)),
	)
	return table
}

// RenderToolsTable renders the tool catalog.
func RenderToolsTable(out io.Writer, entries []catalog.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "No tools available.")
		return err
	}

	table := newTable(out, []string{"Name", "Server", "Description"})
	for _, e := range entries {
		server := e.Server
		if e.Builtin {
			server = "(built-in)"
		}
		if err := table.Append([]string{e.QualifiedName, server, e.Tool.Description}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

// RenderServersTable renders stored server records.
func RenderServersTable(out io.Writer, records []storage.ServerRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No stored servers.")
		return err
	}

	table := newTable(out, []string{"Name", "Transport", "Target", "Enabled", "Updated"})
	for _, r := range records {
		target := r.Address
		if r.Transport == transport.KindStdio {
			target = r.Command
		}
		enabled := "No"
		if r.IsEnabled() {
			enabled = "Yes"
		}
		if err := table.Append([]string{
			r.Name,
			string(r.Transport),
			target,
			enabled,
			r.UpdatedAt.Format("2006-01-02 15:04:05"),
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
