// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Command topnstate replays a YAML scenario file against a Managed
// One-Sided Top-N State, printing the effect of every step. It is the
// manual-testing and demonstration entry point for the topn module; it is
// not meant to be embedded, just driven from the shell.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowlake/topnstate/internal/scenario"
	"github.com/flowlake/topnstate/kv"
	"github.com/flowlake/topnstate/kv/mdbxkv"
	"github.com/flowlake/topnstate/kv/memkv"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var mdbxPath string

	cmd := &cobra.Command{
		Use:   "topnstate <scenario.yaml>",
		Short: "Replay a managed top-n state scenario against an in-memory or MDBX store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			doc, err := scenario.Parse(f)
			if err != nil {
				return err
			}

			store, closeStore, err := openStore(mdbxPath)
			if err != nil {
				return err
			}
			defer closeStore()

			return scenario.Run(context.Background(), cmd.OutOrStdout(), store, doc)
		},
	}
	cmd.Flags().StringVar(&mdbxPath, "mdbx-path", "", "directory for a durable MDBX-backed store (default: in-memory)")
	return cmd
}

func openStore(mdbxPath string) (kv.Store, func(), error) {
	if mdbxPath == "" {
		s := memkv.New()
		return s, func() { _ = s.Close() }, nil
	}
	s, err := mdbxkv.Open(mdbxPath)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}
