package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forPelevin/clipforge/internal/domain/overlay"
	"github.com/forPelevin/clipforge/internal/domain/timeline"
	"github.com/forPelevin/clipforge/internal/pipeline"
	"github.com/forPelevin/clipforge/internal/types"
)

func newClipsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clips <clips.json>",
		Short: "List the clips of a clip set and flag captions that do not fit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, warns, err := pipeline.LoadClips(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, clipsTable(set.Clips))
			for _, w := range warns {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
}

func clipsTable(clips []types.Clip) string {
	rows := make([][]string, 0, len(clips))
	for _, c := range clips {
		rows = append(rows, []string{
			c.ID,
			c.Title,
			timeline.FormatClock(c.StartTime) + "-" + timeline.FormatClock(c.EndTime),
			timeline.FormatClock(c.Duration()),
			strconv.FormatFloat(c.ViralScore, 'f', 1, 64),
			strconv.Itoa(len(c.Captions)),
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Window", "Length", "Score", "Captions"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
	)
}

func newStylesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List the caption styles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), stylesTable(overlay.Styles()))
			return nil
		},
	}
}

func stylesTable(styles []overlay.Style) string {
	rows := make([][]string, 0, len(styles))
	for _, st := range styles {
		var traits []string
		if st.Panel != nil {
			traits = append(traits, "panel")
		}
		if st.Stroke != nil {
			traits = append(traits, "stroke")
		}
		if st.Shadow.Enabled() {
			traits = append(traits, "shadow")
		}
		if st.Uppercase {
			traits = append(traits, "uppercase")
		}
		if st.Rotation != 0 {
			traits = append(traits, fmt.Sprintf("rotated %g°", st.Rotation))
		}
		rows = append(rows, []string{
			string(st.ID),
			st.Name,
			strings.Join(overlay.Aliases(st.ID), ", "),
			fmt.Sprintf("%s %d %gpx", st.Font.Family, st.Font.Weight, st.Font.Size),
			strings.Join(traits, ", "),
		})
	}
	return renderTable([]string{"ID", "Name", "Aliases", "Font", "Look"}, rows, nil)
}
