package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kensaku version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
