package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/clipforge/internal/domain/timeline"
	"github.com/forPelevin/clipforge/internal/export"
	"github.com/forPelevin/clipforge/internal/pipeline"
	"github.com/forPelevin/clipforge/internal/types"
)

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <input>",
		Short: "Render captioned vertical clips to video files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0])
		},
	}
	cmd.Flags().String("clips", "", "Clip set JSON file")
	_ = cmd.MarkFlagRequired("clips")
	cmd.Flags().StringSlice("clip", nil, "Clip id to export, repeatable (default: the first clip)")
	cmd.Flags().Bool("all", false, "Export every clip of the set in timeline order")
	cmd.Flags().String("style", "", "Caption style (default from config)")
	cmd.Flags().String("format", "", "Container: webm or mp4 (default from config)")
	cmd.Flags().String("out", "", "Output directory (default from config)")
	cmd.Flags().Bool("sidecar", false, "Also write an ASS subtitle file per clip")
	return cmd
}

func runExport(cmd *cobra.Command, input string) error {
	cfg, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	clipsFile, _ := cmd.Flags().GetString("clips")
	clipIDs, _ := cmd.Flags().GetStringSlice("clip")
	all, _ := cmd.Flags().GetBool("all")
	if all && len(clipIDs) > 0 {
		return errors.New("--all and --clip are mutually exclusive")
	}
	style, _ := cmd.Flags().GetString("style")
	format, _ := cmd.Flags().GetString("format")
	outDir, _ := cmd.Flags().GetString("out")
	sidecar, _ := cmd.Flags().GetBool("sidecar")
	if format != "" {
		cfg.Export.Format = strings.ToLower(strings.TrimSpace(format))
	}

	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := newProgressPrinter(cmd.ErrOrStderr(), logger)
	pc := pipeline.Config{
		Input:     absIn,
		ClipsFile: clipsFile,
		ClipIDs:   clipIDs,
		All:       all,
		Style:     style,
		OutDir:    outDir,
		Sidecar:   sidecar,
		Settings:  *cfg,
		Logger:    logger,
		OnEvent:   progress.handle,
	}
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	res, err := pipeline.Run(ctx, pc)
	progress.finish()
	out := cmd.OutOrStdout()
	if len(res.Manifest.Clips) > 0 {
		fmt.Fprintln(out, manifestTable(res.Manifest))
		fmt.Fprintf(out, "manifest: %s\n", res.ManifestPath)
	}
	if errors.Is(err, export.ErrCancelled) {
		return errors.New("export cancelled; the interrupted clip was not written")
	}
	return err
}

func manifestTable(m types.Manifest) string {
	rows := make([][]string, 0, len(m.Clips))
	for _, c := range m.Clips {
		rows = append(rows, []string{
			c.ID,
			timeline.FormatClock(c.StartSec) + "-" + timeline.FormatClock(c.EndSec),
			c.File,
			humanBytes(c.Bytes),
			c.Subtitles,
		})
	}
	return renderTable(
		[]string{"ID", "Window", "File", "Size", "Subtitles"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func humanBytes(n int) string {
	const unit = 1024
	if n < unit {
		return strconv.Itoa(n) + " B"
	}
	div, exp := unit, 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
