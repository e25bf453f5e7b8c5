// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wanquanY/Plan-A-sub001/cmd/mcpagent/app/ui"
	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/storage/sqlite"
	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
)

// errNoStorage is returned by the servers commands when no database is configured.
var errNoStorage = errors.New("storage.path is not configured; server records need a database")

func newServersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage tool server records stored in the database",
		Long: `Manage tool server records stored in the SQLite database at storage.path.

Stored servers are connected by serve in addition to the servers declared in
the configuration file. A file entry with the same name wins.`,
	}
	cmd.AddCommand(newServersAddCmd())
	cmd.AddCommand(newServersListCmd())
	cmd.AddCommand(newServersRemoveCmd())
	return cmd
}

// withStore opens the record store for the duration of fn.
func withStore(ctx context.Context, fn func(cfg *config.Config, store *sqlite.ServerStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Path == "" {
		return errNoStorage
	}
	store, err := sqlite.NewServerStoreFromPath(ctx, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open server store: %w", err)
	}
	defer func() { _ = store.Close() }()
	return fn(cfg, store)
}

type serverFlags struct {
	transport   string
	command     string
	args        []string
	env         map[string]string
	address     string
	network     string
	description string
	disabled    bool
}

func (f *serverFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.transport, "transport", string(transport.KindStdio), "Transport: stdio or stream")
	fs.StringVar(&f.command, "command", "", "Command to spawn (stdio)")
	fs.StringSliceVar(&f.args, "arg", nil, "Command argument (stdio, repeatable)")
	fs.StringToStringVar(&f.env, "env", nil, "Environment variable KEY=VALUE (stdio, repeatable)")
	fs.StringVar(&f.address, "address", "", "host:port or socket path (stream)")
	fs.StringVar(&f.network, "network", "", "Network for stream: tcp (default) or unix")
	fs.StringVar(&f.description, "description", "", "Free-form description")
	fs.BoolVar(&f.disabled, "disabled", false, "Store the server without connecting it")
}

func (f *serverFlags) serverConfig(name string) config.ServerConfig {
	sc := config.ServerConfig{
		Name:        name,
		Transport:   transport.Kind(f.transport),
		Command:     f.command,
		Args:        f.args,
		Env:         f.env,
		Address:     f.address,
		Network:     f.network,
		Description: f.description,
	}
	if f.disabled {
		enabled := false
		sc.Enabled = &enabled
	}
	return sc
}

func newServersAddCmd() *cobra.Command {
	flags := &serverFlags{}
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Store a tool server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(cfg *config.Config, store *sqlite.ServerStore) error {
				sc := flags.serverConfig(args[0])
				if err := config.NewValidator().ValidateServer(sc, cfg.Catalog.Separator); err != nil {
					return err
				}
				if err := store.Create(cmd.Context(), sc); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Server %s added\n", sc.Name)
				return err
			})
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func newServersListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored tool servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(_ *config.Config, store *sqlite.ServerStore) error {
				records, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), records)
				}
				return ui.RenderServersTable(cmd.OutOrStdout(), records)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newServersRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a stored tool server",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(_ *config.Config, store *sqlite.ServerStore) error {
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Server %s removed\n", args[0])
				return err
			})
		},
	}
}
