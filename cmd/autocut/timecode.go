package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/autocut/autocut-agent/internal/timecode"
)

var timecodeFPS float64

var timecodeCmd = &cobra.Command{
	Use:   "timecode <frame|HH:MM:SS:FF>",
	Short: "Convert between frame numbers and timecodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := convertTimecode(args[0], timecodeFPS)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	timecodeCmd.Flags().Float64Var(&timecodeFPS, "fps", 25, "frame rate")
}

func convertTimecode(arg string, fps float64) (string, error) {
	if fps <= 0 {
		return "", fmt.Errorf("fps must be positive, got %v", fps)
	}
	if strings.Contains(arg, ":") {
		n, err := timecode.ToFrames(arg, fps)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(n), nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		return "", fmt.Errorf("%q is neither a frame number nor a timecode", arg)
	}
	return timecode.FromFrames(n, fps), nil
}
