package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/autocut/autocut-agent/internal/clip"
	"github.com/autocut/autocut-agent/internal/export"
	"github.com/autocut/autocut-agent/internal/progress"
	"github.com/autocut/autocut-agent/internal/scene"
	"github.com/autocut/autocut-agent/internal/timecode"
)

var exportFlags struct {
	out         string
	cuts        string
	selection   string
	prefix      string
	container   string
	threshold   float64
	minSceneLen int
	edl         bool
}

var exportCmd = &cobra.Command{
	Use:   "export <video>",
	Short: "Export selected scenes as separate clips",
	Long: `Export scenes as clips named {prefix}_{NNN}.{container}.

Cut points come from --cuts (frame numbers or HH:MM:SS:FF timecodes) or,
when omitted, from running scene detection first. --select picks cut
positions (0-based); every cut is exported when it is omitted.`,
	Example: `  autocut export match.mp4 --out ./clips
  autocut export match.mp4 --cuts 0,480,00:01:10:00 --select 1,2 --prefix half1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadCLI()
		if err != nil {
			return err
		}
		videoPath := args[0]
		stderr := cmd.ErrOrStderr()

		outDir := exportFlags.out
		if outDir == "" {
			outDir = cfg.ExportDir()
		}
		if outDir, err = filepath.Abs(outDir); err != nil {
			return fmt.Errorf("invalid output directory: %w", err)
		}
		prefix := exportFlags.prefix
		if prefix == "" {
			prefix = cfg.ClipPrefix()
		}
		container := exportFlags.container
		if container == "" {
			container = cfg.Container()
		}

		pipe := newPipeline(cfg, logger)

		ctx, stop := interruptContext()
		defer stop()

		info, err := pipe.prober.Probe(ctx, videoPath)
		if err != nil {
			return &scene.MediaOpenError{Path: videoPath, Err: err}
		}
		fps := info.FrameRate
		total := info.EstimatedFrames()

		var cuts *clip.CutList
		if exportFlags.cuts != "" {
			frames, err := parseCutSpec(exportFlags.cuts, fps, total)
			if err != nil {
				return err
			}
			points := make([]clip.CutPoint, len(frames))
			for i, f := range frames {
				points[i] = clip.CutPoint{Frame: f, Manual: true}
			}
			cuts = clip.NewCutList(points)
		} else {
			opts := scene.Options{Threshold: cfg.Threshold(), MinSceneLen: cfg.MinSceneLen()}
			if cmd.Flags().Changed("threshold") {
				opts.Threshold = exportFlags.threshold
			}
			if cmd.Flags().Changed("min-scene-len") {
				opts.MinSceneLen = exportFlags.minSceneLen
			}

			var res *scene.Result
			err := withProgress(stderr, "Analyzing", func(onProgress progress.Func) error {
				var ferr error
				res, ferr = pipe.extractor.FindScenes(ctx, videoPath, opts, onProgress)
				return ferr
			})
			if err != nil {
				return err
			}
			if res.Cancelled {
				return errors.New("interrupted during analysis; nothing exported")
			}
			if res.FramesRead > 0 {
				total = res.FramesRead
			}
			if res.FrameRate > 0 {
				fps = res.FrameRate
			}
			cuts = clip.NewCutList(res.Cuts)
		}

		if exportFlags.selection == "" {
			cuts.SelectAll()
		} else {
			positions, err := parseIntList(exportFlags.selection)
			if err != nil {
				return fmt.Errorf("invalid --select: %w", err)
			}
			if err := cuts.Replace(positions); err != nil {
				return err
			}
		}

		ranges := cuts.Ranges(total)
		if len(ranges) == 0 {
			return clip.ErrNothingSelected
		}

		req := export.Request{
			MediaPath:  videoPath,
			Ranges:     ranges,
			OutputDir:  outDir,
			NamePrefix: prefix,
			Container:  container,
		}

		var res *export.Result
		err = withProgress(stderr, "Exporting", func(onProgress progress.Func) error {
			var eerr error
			res, eerr = pipe.driver.Export(ctx, req, onProgress)
			return eerr
		})
		if res != nil {
			writeExportSummary(cmd.OutOrStdout(), res, outDir)
		}
		if err != nil {
			return err
		}

		if exportFlags.edl && !res.Cancelled {
			path, err := export.WriteEDL(export.EDLRequest{
				Title:      strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath)),
				MediaPath:  videoPath,
				Ranges:     ranges,
				NamePrefix: prefix,
				FrameRate:  fps,
				OutputDir:  outDir,
			})
			if err != nil {
				return fmt.Errorf("write edl: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "EDL written to %s\n", path)
		}

		if len(res.Failed) > 0 {
			return fmt.Errorf("%d of %d clips failed", len(res.Failed), res.Attempted)
		}
		return nil
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportFlags.out, "out", "o", "", "output directory (default: exports under the data dir)")
	f.StringVar(&exportFlags.cuts, "cuts", "", "comma-separated cut points as frames or HH:MM:SS:FF")
	f.StringVar(&exportFlags.selection, "select", "", "comma-separated cut positions to export (default: all)")
	f.StringVar(&exportFlags.prefix, "prefix", "", "clip file name prefix")
	f.StringVar(&exportFlags.container, "container", "", "output container (mp4, mov, mkv)")
	f.Float64Var(&exportFlags.threshold, "threshold", scene.DefaultThreshold, "detection threshold when --cuts is not given")
	f.IntVar(&exportFlags.minSceneLen, "min-scene-len", scene.DefaultMinSceneLen, "minimum scene length when --cuts is not given")
	f.BoolVar(&exportFlags.edl, "edl", false, "also write a CMX3600 edit decision list")
}

func writeExportSummary(w io.Writer, res *export.Result, outDir string) {
	if res.Cancelled {
		fmt.Fprintf(w, "Interrupted: exported %d of %d clips to %s\n", res.Exported, res.Requested, outDir)
	} else {
		fmt.Fprintf(w, "Exported %d of %d clips to %s\n", res.Exported, res.Requested, outDir)
	}
	if len(res.Failed) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIP\tRANGE\tEXIT\tERROR")
	for _, f := range res.Failed {
		fmt.Fprintf(tw, "%s\t%d-%d\t%d\t%s\n", filepath.Base(f.Path), f.Range.Start, f.Range.End, f.ExitCode, f.Message)
	}
	tw.Flush()
}

// parseCutSpec reads a comma-separated list of frame numbers and timecodes.
// When total is known, every cut must lie inside the video.
func parseCutSpec(spec string, fps float64, total int) ([]int, error) {
	var frames []int
	for _, field := range strings.Split(spec, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if strings.Contains(field, ":") {
			if fps <= 0 {
				return nil, fmt.Errorf("cut %q: timecodes need a known frame rate", field)
			}
			n, err := timecode.ToFrames(field, fps)
			if err != nil {
				return nil, err
			}
			if err := checkCutBound(field, n, total); err != nil {
				return nil, err
			}
			frames = append(frames, n)
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("cut %q: not a frame number or timecode", field)
		}
		if n < 0 {
			return nil, fmt.Errorf("cut %q: %w", field, clip.ErrNegativeFrame)
		}
		if err := checkCutBound(field, n, total); err != nil {
			return nil, err
		}
		frames = append(frames, n)
	}
	if len(frames) == 0 {
		return nil, errors.New("no cut points given")
	}
	return frames, nil
}

func checkCutBound(field string, frame, total int) error {
	if total > 0 && frame >= total {
		return fmt.Errorf("cut %q: %w: frame %d beyond end (%d frames)", field, clip.ErrIndexOutOfRange, frame, total)
	}
	return nil
}

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", field)
		}
		out = append(out, n)
	}
	return out, nil
}
