package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/clipforge/internal/domain/timeline"
	"github.com/forPelevin/clipforge/internal/pipeline"
)

func newPreviewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <input>",
		Short: "Render one composited frame of a clip to a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, args[0])
		},
	}
	cmd.Flags().String("clips", "", "Clip set JSON file")
	_ = cmd.MarkFlagRequired("clips")
	cmd.Flags().String("clip", "", "Clip id (default: first clip)")
	cmd.Flags().String("style", "", "Caption style (default from config)")
	cmd.Flags().Float64("at", 0, "Seconds into the clip")
	cmd.Flags().String("out", "frame.png", "PNG output path")
	return cmd
}

func runPreview(cmd *cobra.Command, input string) error {
	cfg, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	clipsFile, _ := cmd.Flags().GetString("clips")
	clipID, _ := cmd.Flags().GetString("clip")
	style, _ := cmd.Flags().GetString("style")
	at, _ := cmd.Flags().GetFloat64("at")
	out, _ := cmd.Flags().GetString("out")

	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absIn); err != nil {
		return fmt.Errorf("config: stat input: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Preview(ctx, pipeline.PreviewConfig{
		Input:     absIn,
		ClipsFile: clipsFile,
		ClipID:    clipID,
		Style:     style,
		At:        at,
		Out:       out,
		Settings:  *cfg,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: clip %s at %s, caption %q\n",
		out, res.ClipID, timeline.FormatClock(res.Frame.Relative), res.Frame.Caption)
	return nil
}
