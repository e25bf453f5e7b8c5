// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
)

// ResolveServers combines the servers declared in the configuration file
// with the stored records. A file entry wins over a record of the same name.
func ResolveServers(ctx context.Context, store ServerStore, declared map[string]config.ServerConfig) ([]config.ServerConfig, error) {
	records, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stored servers: %w", err)
	}

	byName := make(map[string]config.ServerConfig, len(declared)+len(records))
	for _, r := range records {
		byName[r.Name] = r.ServerConfig
	}
	for name, sc := range declared {
		if _, ok := byName[name]; ok {
			logger.Debugw("configuration file overrides stored server", "server", name)
		}
		sc.Name = name
		byName[name] = sc
	}

	out := make([]config.ServerConfig, 0, len(byName))
	for _, sc := range byName {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
