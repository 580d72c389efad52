// Command fdb is flurecore's operator CLI: a minimal surface over the
// core (index/merge/query/doctor) grounded on the teacher's cmd/bd, but
// trimmed down from bd's daemon/RPC/auto-flush machinery to the handful
// of subcommands an operator of a content-addressed graph store needs
// day to day.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
