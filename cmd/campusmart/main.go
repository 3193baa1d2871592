// Command campusmart runs the marketplace API and its maintenance tasks.
//
//	campusmart serve        # HTTP + gRPC health, until SIGINT/SIGTERM
//	campusmart seed         # admin account and default payment methods
//	campusmart indexes      # create the document store indexes
//	campusmart route:list   # print the route table
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "campusmart",
	Short:         "CampusMart marketplace API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(indexesCmd)
}
