package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"facedesk/internal/camera"
	"facedesk/internal/config"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Grab one JPEG frame from the kiosk camera",
	Long: `Opens the configured camera, writes one frame and releases the device.
With --recognize the frame is also sent to the backend and the match printed;
no attendance is recorded.`,
	Args: cobra.NoArgs,
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().String("out", "snapshot.jpg", "Output file path")
	snapshotCmd.Flags().Int("quality", 0, "JPEG quality (defaults to JPEG_QUALITY)")
	snapshotCmd.Flags().Bool("recognize", false, "Send the frame to the backend for recognition")
}

func newAdapter(cfg config.App, quality int) (*camera.Adapter, error) {
	dev, err := camera.NewDevice(cfg.CameraDriver, cfg.CameraCommand, cfg.CameraStillPath)
	if err != nil {
		return nil, err
	}
	if quality == 0 {
		quality = cfg.JPEGQuality
	}
	return camera.NewAdapter(dev, quality, logger()), nil
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	client, cfg := newClient()
	cam, err := newAdapter(cfg, mustGetInt(cmd, "quality"))
	if err != nil {
		return err
	}

	var frame []byte
	err = cam.With(cmd.Context(), func(ctx context.Context) error {
		var ferr error
		frame, ferr = cam.CaptureFrame(ctx)
		return ferr
	})
	if err != nil {
		if msg := cam.Err(); msg != "" {
			return fmt.Errorf("%s", msg)
		}
		return err
	}

	path := mustGetString(cmd, "out")
	if err := os.WriteFile(path, frame, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", len(frame), path)

	recognize, _ := cmd.Flags().GetBool("recognize")
	if !recognize {
		return nil
	}
	res, err := client.Recognize(cmd.Context(), frame)
	if err != nil {
		return err
	}
	if !res.Matched() {
		msg := res.Message
		if msg == "" {
			msg = "Face not recognized"
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recognized %s (%.1f%%)\n", res.Employee.Name, res.ConfidenceValue()*100)
	return nil
}
