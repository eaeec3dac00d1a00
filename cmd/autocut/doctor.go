package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/autocut/autocut-agent/internal/tools"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that ffmpeg and ffprobe are installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		caps, err := tools.NewExecDoctor().RunDoctor(ctx)
		if err != nil {
			return err
		}
		printCapabilities(cmd.OutOrStdout(), caps)
		if !caps.OK() {
			return errors.New("required media tools are missing")
		}
		return nil
	},
}

func printCapabilities(w io.Writer, caps *tools.Capabilities) {
	for _, t := range []tools.ToolInfo{caps.FFmpeg, caps.FFprobe} {
		if t.Available {
			fmt.Fprintf(w, "✓ %-8s %s (%s)\n", t.Name, t.Version, t.Path)
		} else {
			fmt.Fprintf(w, "✗ %-8s %s\n", t.Name, t.Error)
		}
	}
	fmt.Fprintf(w, "\nanalyze: %s  export: %s\n", yesNo(caps.CanAnalyze), yesNo(caps.CanExport))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
