// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/z-vasconcelos/flightsurety/database"
	"github.com/z-vasconcelos/flightsurety/internal/config"
)

// dumpJournal writes journal entries as JSON lines and returns how many were
// written
func dumpJournal(
	db *database.Database,
	w io.Writer,
	from uint64,
	limit int,
) (int, error) {
	entries, err := db.Journal(from, limit)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return 0, fmt.Errorf("encode journal entry %d: %w", entry.Seq, err)
		}
	}
	return len(entries), nil
}

func journalCommand() *cobra.Command {
	var from uint64
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Dump the persisted event journal as JSON lines",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			// stdout carries the journal, so keep logs on the default stderr logger
			logger := slog.Default()
			db, err := database.New(&database.Config{
				Logger:         logger,
				BlobPlugin:     cfg.BlobPlugin,
				MetadataPlugin: cfg.MetadataPlugin,
				DataDir:        cfg.DatabasePath,
				MetadataDSN:    cfg.MetadataDsn,
			})
			if err != nil {
				if db != nil {
					_ = db.Close()
				}
				slog.Error(fmt.Sprintf("opening database: %s", err))
				os.Exit(1)
			}
			defer db.Close()
			count, err := dumpJournal(db, cmd.OutOrStdout(), from, limit)
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			logger.Debug(
				"journal dumped",
				"component", programName,
				"entries", count,
				"tip", db.JournalSeq(),
			)
		},
	}
	cmd.Flags().Uint64Var(&from, "from", 1, "first sequence number to dump")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries, 0 for all")
	return cmd
}
