package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/index"
	"github.com/fluree/flurecore/internal/indexer"
)

var indexCommitAddr string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Force an indexer refresh across all four comparator trees",
	Long:  "Folds the ledger's novelty buffer into its SPOT/POST/OPST/TSPO index trees, bypassing the reindex_min_bytes trigger that db.MaybeRefresh honors during normal commit flow.",
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexCommitAddr, "commit", "", "Commit address to load as the base snapshot (defaults to a brand-new ledger)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := openConn(ctx)
	if err != nil {
		return err
	}

	snap, err := loadSnapshot(ctx, conn, indexCommitAddr)
	if err != nil {
		return err
	}

	bus := indexer.NewBus()
	refresher := &indexer.Refresher{Conn: conn, Ledger: ledgerName, Tuning: cfg.Tuning(), Bus: bus}

	type familyResult struct {
		Index   string `json:"index"`
		NewRoot string `json:"new_root"`
		Garbage int    `json:"garbage_collected"`
	}
	var results []familyResult

	for _, idx := range flake.AllIndexes {
		root, err := snap.ResolveRoot(ctx, idx)
		if err != nil {
			return fmt.Errorf("fdb index: resolving %s root: %w", idx, err)
		}
		res, err := refresher.Refresh(ctx, idx, root, snap.Novelty)
		if err != nil {
			return fmt.Errorf("fdb index: refreshing %s: %w", idx, err)
		}
		snap.Roots[idx] = index.RefFor(res.Root)
		results = append(results, familyResult{Index: indexName(idx), NewRoot: res.Root.ID(), Garbage: len(res.Garbage)})
	}
	snap.Novelty = snap.Novelty.EmptyThrough(snap.T)

	meta, err := snap.MarshalCommitMeta()
	if err != nil {
		return fmt.Errorf("fdb index: marshaling commit metadata: %w", err)
	}
	wr, err := conn.CWrite(ctx, ledgerName, meta)
	if err != nil {
		return fmt.Errorf("fdb index: writing commit metadata: %w", err)
	}
	if err := conn.Push(ctx, ledgerName+"/head", wr.Address); err != nil {
		return fmt.Errorf("fdb index: pushing head: %w", err)
	}

	if jsonOutput {
		out := struct {
			Families   []familyResult `json:"families"`
			CommitAddr string         `json:"commit_addr"`
		}{results, wr.Address}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	for _, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%-4s  root=%-20s  garbage=%d\n", r.Index, r.NewRoot, r.Garbage)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "commit=%s\n", wr.Address)
	return nil
}

func indexName(idx flake.Index) string {
	switch idx {
	case flake.SPOT:
		return "spot"
	case flake.POST:
		return "post"
	case flake.OPST:
		return "opst"
	case flake.TSPO:
		return "tspo"
	default:
		return "?"
	}
}
