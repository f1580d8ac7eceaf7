package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facealbums",
	Short: "Group uploaded photos into per-person albums",
	Long: `facealbums filters a user's uploaded photos for usable faces, clusters
them by identity against a face recognition collection and materializes one
album per person, with a thumbnail for every face it discovers.

Jobs are resumable: images already processed are never sent to the
recognition service again.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
