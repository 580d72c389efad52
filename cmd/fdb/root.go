package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fluree/flurecore/internal/diag"
)

// Persistent flags, mirroring bd's package-level flag variables bound in
// init() rather than threaded through cobra.Context.
var (
	storageMethod string
	storagePath   string
	ledgerName    string
	configPath    string
	jsonOutput    bool
	verboseFlag   bool
	quietFlag     bool
)

var rootCmd = &cobra.Command{
	Use:   "fdb",
	Short: "fdb - flurecore operator CLI",
	Long:  "A content-addressed, immutable, versioned semantic graph store. fdb exposes indexing, merge replay, ad-hoc querying, and consistency checks over a ledger.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verboseFlag {
			os.Setenv("FLURE_DEBUG", "1")
		}
		diag.SetQuiet(quietFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storageMethod, "storage", "memory", "Storage adapter: memory, file, or dolt")
	rootCmd.PersistentFlags().StringVar(&storagePath, "storage-path", "", "Base directory for the file/dolt storage adapters")
	rootCmd.PersistentFlags().StringVar(&ledgerName, "ledger", "default", "Ledger name")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML or TOML tuning config")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")

	rootCmd.AddCommand(indexCmd, mergeCmd, queryCmd, doctorCmd)
}
