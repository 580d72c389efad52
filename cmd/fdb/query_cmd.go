package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fluree/flurecore/internal/datatype"
	"github.com/fluree/flurecore/internal/db"
	"github.com/fluree/flurecore/internal/query"
	"github.com/fluree/flurecore/internal/sid"
)

var (
	queryCommitAddr string
	queryFile       string
	queryFuel       int64
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a where-clause of :tuple patterns against a snapshot",
	Long: "Reads a JSON-encoded list of {s,p,o} tuple patterns from --file (or stdin) and resolves them " +
		"left to right against the snapshot at --commit. This is a thin harness over internal/query.Matcher, " +
		"not a full query-surface parser: only :tuple patterns are accepted from the command line.",
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryCommitAddr, "commit", "", "Commit address to query (required)")
	queryCmd.Flags().StringVar(&queryFile, "file", "", "Path to a JSON where-clause file (defaults to stdin)")
	queryCmd.Flags().Int64Var(&queryFuel, "fuel", 0, "Flake visitation budget for this query (0 = unbounded)")
	_ = queryCmd.MarkFlagRequired("commit")
}

// jsonTerm is the CLI's wire form for a query.Term: exactly one of Var,
// IRI, or Lit is set.
type jsonTerm struct {
	Var string `json:"var,omitempty"`
	IRI string `json:"iri,omitempty"`
	Lit any    `json:"lit,omitempty"`
	DT  string `json:"dt,omitempty"`
}

// jsonPattern is the CLI's wire form for a single :tuple pattern.
type jsonPattern struct {
	S jsonTerm `json:"s"`
	P jsonTerm `json:"p"`
	O jsonTerm `json:"o"`
}

func toTerm(jt jsonTerm, codec *sid.Codec) (query.Term, error) {
	switch {
	case jt.Var != "":
		return query.Var(jt.Var), nil
	case jt.IRI != "":
		s, err := codec.Encode(jt.IRI, sid.ModeStrict)
		if err != nil {
			return query.Term{}, fmt.Errorf("unknown IRI %q: %w", jt.IRI, err)
		}
		return query.IRI(s), nil
	default:
		dt := datatype.DatatypeSID(datatype.String)
		if jt.DT != "" {
			var err error
			if dt, err = codec.Encode(jt.DT, sid.ModeStrict); err != nil {
				return query.Term{}, fmt.Errorf("unknown datatype IRI %q: %w", jt.DT, err)
			}
		}
		return query.Lit(jt.Lit, dt), nil
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	conn, err := openConn(ctx)
	if err != nil {
		return err
	}

	snap, err := loadSnapshot(ctx, conn, queryCommitAddr)
	if err != nil {
		return err
	}

	r := os.Stdin
	if queryFile != "" {
		f, err := os.Open(queryFile) // #nosec G304 -- operator-supplied query file
		if err != nil {
			return fmt.Errorf("fdb query: opening %s: %w", queryFile, err)
		}
		defer f.Close()
		r = f
	}

	var jsonPats []jsonPattern
	if err := json.NewDecoder(r).Decode(&jsonPats); err != nil {
		return fmt.Errorf("fdb query: decoding where-clause: %w", err)
	}

	clause := make(query.Clause, 0, len(jsonPats))
	for i, jp := range jsonPats {
		s, err := toTerm(jp.S, snap.Namespaces)
		if err != nil {
			return fmt.Errorf("fdb query: pattern %d subject: %w", i, err)
		}
		p, err := toTerm(jp.P, snap.Namespaces)
		if err != nil {
			return fmt.Errorf("fdb query: pattern %d predicate: %w", i, err)
		}
		o, err := toTerm(jp.O, snap.Namespaces)
		if err != nil {
			return fmt.Errorf("fdb query: pattern %d object: %w", i, err)
		}
		clause = append(clause, query.Tuple(s, p, o))
	}

	m := &query.Matcher{DB: snap, Fuel: queryFuel}
	sols, err := m.Search(ctx, clause, nil)
	if err != nil {
		return fmt.Errorf("fdb query: %w", err)
	}

	out := renderSolutions(sols, snap)
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	for _, row := range out {
		fmt.Fprintln(cmd.OutOrStdout(), row)
	}
	return nil
}

func renderSolutions(sols []query.Solution, snap *db.DB) []map[string]string {
	out := make([]map[string]string, 0, len(sols))
	for _, sol := range sols {
		row := make(map[string]string, len(sol))
		for v, m := range sol {
			if m.IsSID {
				iri, err := snap.Namespaces.Decode(m.SID)
				if err != nil {
					row[v] = m.SID.String()
					continue
				}
				row[v] = iri
				continue
			}
			row[v] = fmt.Sprintf("%v", m.Value)
		}
		out = append(out, row)
	}
	return out
}
