// Package ui shows the agent's state in the system tray and lets the user
// stop the running job.
package ui

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/getlantern/systray"

	"github.com/autocut/autocut-agent/internal/progress"
	"github.com/autocut/autocut-agent/internal/session"
)

// JobControl is the part of the job runner the tray drives.
type JobControl interface {
	Status() session.Status
	Subscribe(fn func(session.Status))
	Cancel() bool
}

type Tray struct {
	runner JobControl
	logger *slog.Logger

	statusItem *systray.MenuItem
	videoItem  *systray.MenuItem
	stopItem   *systray.MenuItem

	mu    sync.Mutex
	ready bool

	currentVideo func() string
	onQuit       func()
}

type TrayConfig struct {
	Runner JobControl
	Logger *slog.Logger
	// CurrentVideo returns the path of the loaded video, or "".
	CurrentVideo func() string
	OnQuit       func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		runner:       cfg.Runner,
		logger:       cfg.Logger,
		currentVideo: cfg.CurrentVideo,
		onQuit:       cfg.OnQuit,
	}
}

// Run blocks on the platform event loop until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetTitle("Autocut")
	systray.SetTooltip("Autocut Agent")

	t.statusItem = systray.AddMenuItem(StatusTitle(session.Status{}), "Current agent status")
	t.statusItem.Disable()

	t.videoItem = systray.AddMenuItem(VideoTitle(""), "Loaded video")
	t.videoItem.Disable()

	systray.AddSeparator()

	t.stopItem = systray.AddMenuItem("Stop task", "Cancel the running analysis or export")
	t.stopItem.Disable()

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Autocut Agent")

	t.mu.Lock()
	t.ready = true
	t.mu.Unlock()

	if t.runner != nil {
		t.runner.Subscribe(t.UpdateStatus)
		t.UpdateStatus(t.runner.Status())
	}

	go func() {
		for {
			select {
			case <-t.stopItem.ClickedCh:
				t.handleStop()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleStop() {
	if t.runner == nil {
		return
	}
	if t.runner.Cancel() {
		t.logger.Info("stop requested from tray")
		t.mu.Lock()
		if t.ready {
			t.statusItem.SetTitle("Status: Stopping...")
		}
		t.mu.Unlock()
	}
}

// UpdateStatus reflects a runner snapshot in the menu.
func (t *Tray) UpdateStatus(s session.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return
	}

	t.statusItem.SetTitle(StatusTitle(s))
	if s.Busy {
		t.stopItem.Enable()
	} else {
		t.stopItem.Disable()
	}
	if t.currentVideo != nil {
		t.videoItem.SetTitle(VideoTitle(t.currentVideo()))
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}

// StatusTitle is the status line for a runner snapshot.
func StatusTitle(s session.Status) string {
	if !s.Busy {
		return "Status: Idle"
	}
	verb := "Working"
	switch s.JobType {
	case session.JobTypeAnalyze:
		verb = "Analyzing"
	case session.JobTypeExport:
		verb = "Exporting"
	}
	return fmt.Sprintf("Status: %s %d%%", verb, progress.Percent(s.Progress))
}

func VideoTitle(path string) string {
	if path == "" {
		return "Video: none"
	}
	return "Video: " + filepath.Base(path)
}
