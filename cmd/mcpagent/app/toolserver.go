// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/wanquanY/Plan-A-sub001/pkg/builtin"
	"github.com/wanquanY/Plan-A-sub001/pkg/toolserver"
	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
	"github.com/wanquanY/Plan-A-sub001/pkg/versions"
)

func newToolServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tool-server",
		Short: "Serve the built-in tools as an MCP server over stdio",
		Long: `Serve the built-in tools as an MCP server on stdin/stdout.

This lets another agent (or this one, through a stdio server entry) use the
built-in tools like any other tool server. Logs go to stderr. Closing stdin
stops the server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := newBuiltinServer()
			return srv.Serve(cmd.Context(), transport.NewReadWriter(os.Stdin, os.Stdout, os.Stdin))
		},
	}
}

func newBuiltinServer() *toolserver.Server {
	srv := toolserver.New("mcpagent-builtins", versions.GetVersionInfo().Version,
		toolserver.WithInstructions("Utility tools: current time and UUID generation."))
	for _, bt := range builtin.Tools() {
		srv.AddTool(bt.Tool, bt.Handler)
	}
	return srv
}
