// Package notify delivers reminder notifications to the desktop.
package notify

import (
	"errors"
	"fmt"

	"fyne.io/fyne/v2"
	"github.com/borgmon/schedule-reminder/pkg/logger"
	"github.com/borgmon/schedule-reminder/pkg/models"
)

const DefaultTitleLine = "Schedule Reminder"

// Request is a single desktop notification
type Request struct {
	TitleLine      string
	Body           string
	AppName        string
	TimeoutSeconds int
}

// Notifier delivers a notification. Implementations must be safe to call from
// any goroutine; delivery is fire-and-forget.
type Notifier interface {
	Notify(req Request) error
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(req Request) error

func (f NotifierFunc) Notify(req Request) error {
	return f(req)
}

// DefaultRequest builds the reminder shown for entry
func DefaultRequest(entry models.ScheduleEntry, appName string, timeoutSeconds int) Request {
	return Request{
		TitleLine:      DefaultTitleLine,
		Body:           entry.String(),
		AppName:        appName,
		TimeoutSeconds: timeoutSeconds,
	}
}

// FyneNotifier sends notifications through the Fyne app. Fyne decides how long
// a notification stays visible, so TimeoutSeconds is only logged.
type FyneNotifier struct {
	app fyne.App
	log logger.Logger
}

func NewFyneNotifier(app fyne.App, log logger.Logger) *FyneNotifier {
	return &FyneNotifier{app: app, log: logger.Default(log)}
}

func (n *FyneNotifier) Notify(req Request) error {
	if n.app == nil {
		return errors.New("no application to send notifications through")
	}
	if req.TitleLine == "" && req.Body == "" {
		return fmt.Errorf("empty notification for %s", req.AppName)
	}
	n.app.SendNotification(fyne.NewNotification(req.TitleLine, req.Body))
	n.log.Info("Sent notification %q (app %s, timeout %ds)", req.Body, req.AppName, req.TimeoutSeconds)
	return nil
}

// Sound is the part of the chime player a notifier needs
type Sound interface {
	Play() error
}

// ChimeNotifier plays a sound after the wrapped notifier delivered successfully.
// Sound failures are logged and never fail the notification.
type ChimeNotifier struct {
	next  Notifier
	sound Sound
	log   logger.Logger
}

func NewChimeNotifier(next Notifier, sound Sound, log logger.Logger) *ChimeNotifier {
	return &ChimeNotifier{next: next, sound: sound, log: logger.Default(log)}
}

func (c *ChimeNotifier) Notify(req Request) error {
	if err := c.next.Notify(req); err != nil {
		return err
	}
	if c.sound != nil {
		if err := c.sound.Play(); err != nil {
			c.log.Warning("Failed to play reminder chime: %v", err)
		}
	}
	return nil
}

var (
	_ Notifier = (*FyneNotifier)(nil)
	_ Notifier = (*ChimeNotifier)(nil)
	_ Notifier = NotifierFunc(nil)
)
