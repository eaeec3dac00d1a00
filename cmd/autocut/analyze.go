package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/autocut/autocut-agent/internal/progress"
	"github.com/autocut/autocut-agent/internal/scene"
	"github.com/autocut/autocut-agent/internal/timecode"
)

var analyzeFlags struct {
	threshold   float64
	minSceneLen int
	json        bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <video>",
	Short: "Detect scene cuts in a video",
	Long: `Detect scene boundaries and print one row per cut point with its frame
index and timecode. Ctrl-C stops early and prints the cuts found so far.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadCLI()
		if err != nil {
			return err
		}
		opts := scene.Options{
			Threshold:   cfg.Threshold(),
			MinSceneLen: cfg.MinSceneLen(),
		}
		if cmd.Flags().Changed("threshold") {
			opts.Threshold = analyzeFlags.threshold
		}
		if cmd.Flags().Changed("min-scene-len") {
			opts.MinSceneLen = analyzeFlags.minSceneLen
		}

		pipe := newPipeline(cfg, logger)

		ctx, stop := interruptContext()
		defer stop()

		var res *scene.Result
		err = withProgress(cmd.ErrOrStderr(), "Analyzing", func(onProgress progress.Func) error {
			var ferr error
			res, ferr = pipe.extractor.FindScenes(ctx, args[0], opts, onProgress)
			return ferr
		})
		if err != nil {
			return err
		}

		if analyzeFlags.json {
			return writeAnalysisJSON(cmd.OutOrStdout(), res)
		}
		writeCutTable(cmd.OutOrStdout(), res)
		if res.Cancelled {
			fmt.Fprintf(cmd.ErrOrStderr(), "Interrupted after %d frames; list is partial.\n", res.FramesRead)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Float64Var(&analyzeFlags.threshold, "threshold", scene.DefaultThreshold, "adaptive ratio a frame must exceed to start a new scene")
	analyzeCmd.Flags().IntVar(&analyzeFlags.minSceneLen, "min-scene-len", scene.DefaultMinSceneLen, "minimum scene length in frames")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.json, "json", false, "print the result as JSON")
}

type analysisOutput struct {
	FrameRate  float64     `json:"frame_rate"`
	FramesRead int         `json:"frames_read"`
	Cancelled  bool        `json:"cancelled"`
	Cuts       []cutOutput `json:"cuts"`
}

type cutOutput struct {
	Index    int    `json:"index"`
	Frame    int    `json:"frame"`
	Timecode string `json:"timecode"`
}

func writeAnalysisJSON(w io.Writer, res *scene.Result) error {
	out := analysisOutput{
		FrameRate:  res.FrameRate,
		FramesRead: res.FramesRead,
		Cancelled:  res.Cancelled,
		Cuts:       make([]cutOutput, 0, len(res.Cuts)),
	}
	for i, c := range res.Cuts {
		out.Cuts = append(out.Cuts, cutOutput{Index: i, Frame: c.Frame, Timecode: cutTimecode(c.Frame, res.FrameRate)})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeCutTable(w io.Writer, res *scene.Result) {
	if len(res.Cuts) == 0 {
		fmt.Fprintln(w, "No cuts found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tFRAME\tTIMECODE")
	for i, c := range res.Cuts {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", i, c.Frame, cutTimecode(c.Frame, res.FrameRate))
	}
	tw.Flush()
}

func cutTimecode(frame int, fps float64) string {
	if fps <= 0 {
		return "-"
	}
	return timecode.FromFrames(frame, fps)
}
