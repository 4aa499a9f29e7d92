package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mpetrun/semcode/internal/vectorstore"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	flagConfig string
	flagRoot   string
)

func main() {
	root := &cobra.Command{
		Use:           "semcode",
		Short:         "Incremental semantic code indexing and search",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ./semcode.yaml or ~/.semcode/semcode.yaml)")

	root.AddCommand(
		newIndexCmd(),
		newReindexCmd(),
		newSearchCmd(),
		newClearCmd(),
		newStatusCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("semcode %s\n", version)
			fmt.Printf("Build Time: %s\n", buildTime)
			fmt.Printf("SQLite Build Mode: %s\n", vectorstore.BuildMode)
			fmt.Printf("SQLite Driver: %s\n", vectorstore.DriverName)
		},
	}
}
