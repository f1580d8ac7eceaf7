package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var thumbnailsCmd = &cobra.Command{
	Use:   "thumbnails",
	Short: "Create missing face thumbnails",
	Long: `Create a thumbnail for every face of the user in the collection that
does not have one yet, for example after thumbnails failed during a job.`,
	RunE: runThumbnails,
}

func init() {
	rootCmd.AddCommand(thumbnailsCmd)

	thumbnailsCmd.Flags().String("user", "", "ID of the user owning the faces")
	thumbnailsCmd.Flags().String("collection", "", "Face collection")
	_ = thumbnailsCmd.MarkFlagRequired("user")
	_ = thumbnailsCmd.MarkFlagRequired("collection")
}

func runThumbnails(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	collection, _ := cmd.Flags().GetString("collection")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.thumbnails.DeriveMissing(ctx, userID, collection)
	if err != nil {
		return err
	}
	fmt.Printf("Thumbnails: %d created, %d skipped, %d failed\n", stats.Created, stats.Skipped, stats.Failed)
	if stats.Failed > 0 {
		return fmt.Errorf("%d thumbnail(s) could not be created", stats.Failed)
	}
	return nil
}
