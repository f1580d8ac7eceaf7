package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/camden-git/facealbums/models"
	"github.com/camden-git/facealbums/services"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Cluster one folder of a user into face albums",
	Long: `Run a processing job for one folder in the foreground.

Images are quality-checked, matched against the collection or indexed as new
faces, grouped into albums and given face thumbnails. Interrupting the job
keeps everything done so far; running it again continues where it stopped.

Examples:
  facealbums process --user 7f3c... --folder 1a2b... --collection family`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().String("user", "", "ID of the user owning the images")
	processCmd.Flags().String("folder", "", "ID of the folder to process")
	processCmd.Flags().String("collection", "", "Face collection to cluster into")
	_ = processCmd.MarkFlagRequired("user")
	_ = processCmd.MarkFlagRequired("folder")
	_ = processCmd.MarkFlagRequired("collection")
}

func runProcess(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	folderID, _ := cmd.Flags().GetString("folder")
	collection, _ := cmd.Flags().GetString("collection")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	counts, err := a.images.CountByStatus(ctx, userID, folderID)
	if err != nil {
		return err
	}
	pending := counts[models.StatusUploadedToS3] + counts[models.StatusFacesDetected]
	if pending == 0 {
		fmt.Println("No images left to process in this folder.")
	} else {
		fmt.Printf("Images to process: %d\n\n", pending)
	}

	bar := progressbar.NewOptions64(pending,
		progressbar.OptionSetDescription("Clustering images"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
	progress := func(e services.JobEvent) {
		switch e.Type {
		case services.EventPageProcessed:
			_ = bar.Add(e.PageImages)
		case services.EventThumbnailsDone:
			_ = bar.Finish()
		}
	}

	req := services.JobRequest{UserID: userID, FolderID: folderID, Namespace: collection}
	job, err := a.jobs.Run(ctx, req, progress)
	fmt.Println()
	if job != nil {
		printJobSummary(job)
	}
	return err
}

func printJobSummary(job *models.ProcessingJob) {
	fmt.Printf("Job %s %s\n", job.ID, job.Status)
	fmt.Printf("  Pages:       %d\n", job.PagesProcessed)
	fmt.Printf("  Images:      %d processed, %d clustered\n", job.ImagesProcessed, job.ImagesClustered)
	fmt.Printf("  New faces:   %d\n", job.FacesCreated)
	fmt.Printf("  Albums:      %d\n", job.AlbumsCreated)
	fmt.Printf("  Thumbnails:  %d created, %d failed\n", job.ThumbnailsCreated, job.ThumbnailsFailed)
	if job.Status == models.JobStatusCancelled {
		fmt.Println("Run the same command again to resume.")
	}
}
