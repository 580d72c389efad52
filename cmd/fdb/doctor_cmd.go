package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fluree/flurecore/internal/datatype"
	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/flake"
	"github.com/fluree/flurecore/internal/index"
	"github.com/fluree/flurecore/internal/sid"
	"github.com/fluree/flurecore/internal/sortedset"
	"github.com/fluree/flurecore/internal/store"
)

var doctorCommitAddr string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Re-validate spec invariants #1 (index parity), #3 (SID round-trip), and #6 (leaf bounds)",
	Long: "Walks every comparator tree and the SID codec of the snapshot at --commit, reporting any " +
		"violation of the cross-index flake-count parity, the IRI<->SID round-trip, or a leaf's content bounds/size-sum invariants.",
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorCommitAddr, "commit", "", "Commit address to check (required)")
	_ = doctorCmd.MarkFlagRequired("commit")
}

// finding is one invariant check's outcome, keyed by the spec invariant
// number it re-validates.
type finding struct {
	Invariant string `json:"invariant"`
	OK        bool   `json:"ok"`
	Detail    string `json:"detail,omitempty"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	conn, err := openConn(ctx)
	if err != nil {
		return err
	}
	snap, err := loadSnapshot(ctx, conn, doctorCommitAddr)
	if err != nil {
		return err
	}

	findings := []finding{
		checkIndexParity(ctx, snap),
		checkSIDRoundTrip(ctx, snap),
		checkLeafBounds(ctx, snap),
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(findings)
	}
	failed := 0
	for _, f := range findings {
		status := "OK"
		if !f.OK {
			status = "FAIL"
			failed++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s", status, f.Invariant)
		if f.Detail != "" {
			fmt.Fprintf(cmd.OutOrStdout(), ": %s", f.Detail)
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
	if failed > 0 {
		return fmt.Errorf("fdb doctor: %d invariant(s) failed", failed)
	}
	return nil
}

// checkIndexParity re-validates invariant #1 of spec.md §8: SPOT, POST,
// and TSPO must hold exactly the same flake count, and OPST must hold
// exactly the subset typed anyURI.
func checkIndexParity(ctx context.Context, snap *db.DB) finding {
	counts := make(map[flake.Index]int, len(flake.AllIndexes))
	var opstWant int
	anyURI := datatype.DatatypeSID(datatype.AnyURI)

	for _, idx := range flake.AllIndexes {
		fs, err := snap.Range(ctx, idx, sortedset.GTE, flake.Flake{})
		if err != nil {
			return finding{Invariant: "1-index-parity", OK: false, Detail: fmt.Sprintf("ranging %s: %v", idx, err)}
		}
		counts[idx] = len(fs)
		if idx == flake.SPOT {
			for _, f := range fs {
				if flake.BelongsToOPST(f, anyURI) {
					opstWant++
				}
			}
		}
	}

	spot, post, tspo, opst := counts[flake.SPOT], counts[flake.POST], counts[flake.TSPO], counts[flake.OPST]
	if spot != post || spot != tspo {
		return finding{Invariant: "1-index-parity", OK: false,
			Detail: fmt.Sprintf("spot=%d post=%d tspo=%d (want equal)", spot, post, tspo)}
	}
	if opst != opstWant {
		return finding{Invariant: "1-index-parity", OK: false,
			Detail: fmt.Sprintf("opst=%d, but %d spot flakes are anyURI-typed", opst, opstWant)}
	}
	return finding{Invariant: "1-index-parity", OK: true,
		Detail: fmt.Sprintf("spot=post=tspo=%d opst=%d", spot, opst)}
}

// checkSIDRoundTrip re-validates invariant #3 of spec.md §8: every SID
// the snapshot's flakes reference must decode to an IRI that re-encodes
// to the very same SID. Collects every distinct SID referenced as a
// subject, predicate, datatype, or SID-valued object across the SPOT
// tree (SPOT alone suffices — it holds the full flake set).
func checkSIDRoundTrip(ctx context.Context, snap *db.DB) finding {
	fs, err := snap.Range(ctx, flake.SPOT, sortedset.GTE, flake.Flake{})
	if err != nil {
		return finding{Invariant: "3-sid-roundtrip", OK: false, Detail: fmt.Sprintf("ranging spot: %v", err)}
	}

	seen := make(map[sid.SID]struct{})
	for _, f := range fs {
		seen[f.S] = struct{}{}
		seen[f.P] = struct{}{}
		seen[f.DT] = struct{}{}
		if f.O.IsSID {
			seen[f.O.SID] = struct{}{}
		}
	}

	for s := range seen {
		iri, err := snap.Namespaces.Decode(s)
		if err != nil {
			return finding{Invariant: "3-sid-roundtrip", OK: false, Detail: fmt.Sprintf("decoding %v: %v", s, err)}
		}
		back, err := snap.Namespaces.Encode(iri, sid.ModeStrict)
		if err != nil {
			return finding{Invariant: "3-sid-roundtrip", OK: false, Detail: fmt.Sprintf("re-encoding %q: %v", iri, err)}
		}
		if back != s {
			return finding{Invariant: "3-sid-roundtrip", OK: false,
				Detail: fmt.Sprintf("%v decoded to %q, which re-encoded to %v", s, iri, back)}
		}
	}
	return finding{Invariant: "3-sid-roundtrip", OK: true, Detail: fmt.Sprintf("%d SIDs checked", len(seen))}
}

// checkLeafBounds re-validates invariant #6 of spec.md §8: every flake
// in a leaf must compare within [first, rhs] under the leaf's
// comparator, and the sum of per-flake sizes must equal the leaf's
// recorded size_bytes.
func checkLeafBounds(ctx context.Context, snap *db.DB) finding {
	var leafCount int
	for _, idx := range flake.AllIndexes {
		root, err := snap.ResolveRoot(ctx, idx)
		if err != nil {
			return finding{Invariant: "6-leaf-bounds", OK: false, Detail: fmt.Sprintf("resolving %s root: %v", idx, err)}
		}
		err = walkLeaves(ctx, snap.Conn, root, func(l *index.Leaf) error {
			leafCount++
			var sum int
			var badFlake error
			l.Flakes.Each(func(f flake.Flake) bool {
				if !l.InBounds(f) {
					badFlake = fmt.Errorf("leaf %s: flake out of [first,rhs] bounds", l.ID())
					return false
				}
				sum += flake.Size(f)
				return true
			})
			if badFlake != nil {
				return badFlake
			}
			if sum != l.SizeBytes() {
				return fmt.Errorf("leaf %s: size_bytes=%d but sum(size_flake)=%d", l.ID(), l.SizeBytes(), sum)
			}
			return nil
		})
		if err != nil {
			return finding{Invariant: "6-leaf-bounds", OK: false, Detail: err.Error()}
		}
	}
	return finding{Invariant: "6-leaf-bounds", OK: true, Detail: fmt.Sprintf("%d leaves checked", leafCount)}
}

// walkLeaves recursively resolves n's subtree through conn, calling fn on
// every leaf reached.
func walkLeaves(ctx context.Context, conn store.Conn, n index.Node, fn func(*index.Leaf) error) error {
	switch node := n.(type) {
	case nil:
		return nil
	case *index.Leaf:
		return fn(node)
	case *index.Branch:
		for _, child := range node.Children {
			resolved, err := index.ResolveChild(ctx, conn, child)
			if err != nil {
				return err
			}
			if err := walkLeaves(ctx, conn, resolved, fn); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("doctor: unknown node type %T", n)
	}
}
