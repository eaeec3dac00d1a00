package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"

	"github.com/autocut/autocut-agent/internal/progress"
)

// withProgress runs fn with a progress callback rendered as a terminal bar
// on w. The bar is drawn by its own goroutine fed through a mailbox, so fn
// never blocks on the terminal.
func withProgress(w io.Writer, desc string, fn func(progress.Func) error) error {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)

	mailbox := progress.NewMailbox()
	done := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			select {
			case u := <-mailbox.C():
				_ = bar.Set(progress.Percent(u.Fraction))
			case <-done:
				return
			}
		}
	}()

	err := fn(mailbox.Func())
	close(done)
	<-drained
	_ = bar.Finish()
	return err
}

// interruptContext is cancelled on Ctrl-C or SIGTERM so a long run stops
// cleanly and reports what it finished.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
