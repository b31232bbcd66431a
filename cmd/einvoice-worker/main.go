// Command einvoice-worker is the process entry point: a cobra command
// tree exposing serve, process, and migrate, per SPEC_FULL.md §4.19.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "einvoice-worker",
		Short: "Asynchronous e-invoicing validation pipeline worker",
	}

	root.AddCommand(newServeCmd(v))
	root.AddCommand(newProcessCmd(v))
	root.AddCommand(newMigrateCmd(v))

	return root
}
