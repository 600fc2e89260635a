// internal/notify/desktop.go
package notify

import (
	"errors"

	"school-notifier/internal/common/logger"
)

// NoopNotifier is a DesktopNotifier for platforms without an OS notification
// surface. Permission is reported as unsupported, turning the desktop sink
// into a silent no-op.
type NoopNotifier struct{}

func (NoopNotifier) RequestPermission() error {
	return errors.New("desktop notifications unsupported")
}

func (NoopNotifier) Show(title, message string, onClick func()) (func(), error) {
	return nil, errors.New("desktop notifications unsupported")
}

// LogNotifier is a DesktopNotifier for headless deployments: it logs where a
// desktop notification would have been raised.
type LogNotifier struct {
	Log logger.Logger
}

func (l LogNotifier) RequestPermission() error {
	return nil
}

func (l LogNotifier) Show(title, message string, onClick func()) (func(), error) {
	l.Log.Info("desktop notification", map[string]interface{}{
		"title":   title,
		"message": message,
	})
	return func() {}, nil
}
