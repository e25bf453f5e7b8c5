// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/wanquanY/Plan-A-sub001/cmd/mcpagent/app/ui"
)

func newToolsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Connect to the configured servers and list the aggregated tools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			gw, err := startGateway(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer gw.close()

			entries := gw.catalog.Tools()
			if asJSON {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			return ui.RenderToolsTable(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
