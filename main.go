package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/borgmon/schedule-reminder/pkg/audio"
	"github.com/borgmon/schedule-reminder/pkg/dispatch"
	"github.com/borgmon/schedule-reminder/pkg/logger"
	"github.com/borgmon/schedule-reminder/pkg/models"
	"github.com/borgmon/schedule-reminder/pkg/notify"
	"github.com/borgmon/schedule-reminder/pkg/platform"
	"github.com/borgmon/schedule-reminder/pkg/scheduler"
	"github.com/borgmon/schedule-reminder/pkg/store"
	"github.com/spf13/afero"
)

const appID = "com.borgmon.schedule-reminder"

// Window reveal choreography, each delay counted from the previous step
const revealStepDelay = 10 * time.Millisecond

type ScheduleReminder struct {
	app         fyne.App
	log         logger.Logger
	config      *models.Config
	configStore *store.ConfigStore
	store       *store.ScheduleStore
	scheduler   *scheduler.Scheduler
	bridge      *dispatch.Bridge
	window      *ScheduleWindow
	chime       *audio.Chime

	ctx      context.Context
	cancel   context.CancelFunc
	bgWG     sync.WaitGroup
	quitOnce sync.Once
}

func main() {
	sr := &ScheduleReminder{
		app: app.NewWithID(appID),
		log: logger.NewStandardLogger(log.Default()),
	}

	if err := sr.initialize(); err != nil {
		log.Fatal(err)
	}

	sr.run()
}

func (sr *ScheduleReminder) initialize() error {
	sr.ctx, sr.cancel = context.WithCancel(context.Background())

	sr.configStore = store.NewConfigStore(sr.app)
	sr.config = sr.configStore.Load()

	// Sync autostart state with config on startup
	if err := setupAutostart(sr.config.AutoStart); err != nil {
		sr.log.Warning("Failed to setup autostart: %v", err)
	}

	sr.configStore.Save(sr.config)

	if err := os.MkdirAll(filepath.Dir(sr.config.StorePath), 0o755); err != nil {
		return err
	}
	sr.store = store.NewScheduleStore(afero.NewOsFs(), sr.config.StorePath, sr.log)
	sr.log.Info("Using schedule file %s", sr.store.Path())

	sr.bridge = dispatch.New(dispatch.FyneRunner{}, sr.log)

	sr.scheduler = scheduler.New(sr.store, sr.buildNotifier(),
		scheduler.WithInterval(sr.config.PollInterval()),
		scheduler.WithLogger(sr.log),
		scheduler.WithRequest(func(entry models.ScheduleEntry) notify.Request {
			return notify.DefaultRequest(entry, models.DefaultAppDisplayName, sr.config.NotifyTimeoutSecs)
		}),
	)

	sr.window = NewScheduleWindow(sr.app, sr.store, sr.bridge, sr.log)
	sr.setupSystemTray()

	return nil
}

// buildNotifier wraps desktop notifications with the chime when enabled
func (sr *ScheduleReminder) buildNotifier() notify.Notifier {
	var notifier notify.Notifier = notify.NewFyneNotifier(sr.app, sr.log)
	if !sr.config.ChimeEnabled {
		return notifier
	}

	chime, err := audio.NewChime(sr.config.ChimeFile, sr.log)
	if err != nil {
		sr.log.Warning("Falling back to the built-in chime: %v", err)
		chime, _ = audio.NewChime("", sr.log)
	}
	sr.chime = chime
	return notify.NewChimeNotifier(notifier, chime, sr.log)
}

func (sr *ScheduleReminder) run() {
	sr.app.Lifecycle().SetOnStarted(func() {
		platform.SetActivationPolicy()
		sr.startBackground()
	})
	sr.app.Run()

	// Run returns once the UI loop has ended
	sr.shutdown()
}

func (sr *ScheduleReminder) startBackground() {
	sr.scheduler.Start(sr.ctx)

	if sr.config.WatchStore {
		sr.bgWG.Add(1)
		go func() {
			defer sr.bgWG.Done()
			err := store.WatchFile(sr.ctx, sr.store.Path(), store.DefaultWatchDebounce, sr.log, func() {
				sr.bridge.Post(sr.window.Refresh)
			})
			if err != nil {
				sr.log.Warning("Not watching schedule file: %v", err)
			}
		}()
	}

	if sr.config.HotkeyEnabled {
		sr.bgWG.Add(1)
		go func() {
			defer sr.bgWG.Done()
			sr.listenShowHotkey(sr.ctx)
		}()
	}
}

// showWindow may be called from any goroutine. The reveal is split into
// steps so the UI goroutine never waits on the window manager.
func (sr *ScheduleReminder) showWindow() {
	sr.bridge.Sequence(
		dispatch.Step{Fn: func() {
			sr.window.Refresh()
			sr.window.Reveal()
		}},
		dispatch.Step{Delay: revealStepDelay, Fn: sr.window.Raise},
		dispatch.Step{Delay: revealStepDelay, Fn: func() { sr.window.SetFloating(true) }},
		dispatch.Step{Delay: revealStepDelay, Fn: func() { sr.window.SetFloating(false) }},
	)
}

// quit may be called from any goroutine
func (sr *ScheduleReminder) quit() {
	sr.bridge.Post(func() {
		sr.app.Quit()
	})
}

func (sr *ScheduleReminder) shutdown() {
	sr.quitOnce.Do(func() {
		sr.log.Info("Shutting down")
		sr.cancel()
		sr.scheduler.Stop()
		sr.scheduler.Wait()
		sr.bgWG.Wait()
		sr.bridge.Close()
		if sr.chime != nil {
			sr.chime.Stop()
		}
	})
}
