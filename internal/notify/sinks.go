// internal/notify/sinks.go
package notify

import (
	"sync"
	"time"

	apperrors "school-notifier/internal/common/errors"
	"school-notifier/internal/common/logger"
	"school-notifier/internal/models"
)

// DesktopNotifier abstracts the OS-level notification surface. Implementations
// must be safe to call when the platform has no notification support.
type DesktopNotifier interface {
	// RequestPermission asks the user once; an error means denied or unsupported.
	RequestPermission() error
	// Show raises a notification and returns a dismiss func. The onClick
	// callback fires when the user activates the notification.
	Show(title, message string, onClick func()) (dismiss func(), err error)
}

// DesktopSink raises OS-level notifications, auto-dismissed after a fixed
// delay. Clicking one routes the viewer through the navigate callback.
// Permission is requested lazily, exactly once; when denied the sink becomes
// a silent no-op.
type DesktopSink struct {
	notifier     DesktopNotifier
	dismissAfter time.Duration
	role         string
	navigate     func(path string)
	log          logger.Logger

	permOnce    sync.Once
	permGranted bool
}

func NewDesktopSink(notifier DesktopNotifier, dismissAfter time.Duration, role string, navigate func(path string), log logger.Logger) *DesktopSink {
	return &DesktopSink{
		notifier:     notifier,
		dismissAfter: dismissAfter,
		role:         role,
		navigate:     navigate,
		log:          log.WithFields(map[string]interface{}{"sink": "desktop"}),
	}
}

func (d *DesktopSink) Name() string { return "desktop" }

func (d *DesktopSink) Deliver(n models.Notification) error {
	d.permOnce.Do(func() {
		if err := d.notifier.RequestPermission(); err != nil {
			d.log.Debug("desktop notifications unavailable", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		d.permGranted = true
	})

	if !d.permGranted {
		return nil
	}

	dismiss, err := d.notifier.Show(n.Title, n.Message, func() {
		path := Route(n, d.role)
		if path == "" {
			routeErr := apperrors.NewRouteUnresolvedError(n.Type, "role: "+d.role)
			d.log.Debug("no navigation target for clicked notification", map[string]interface{}{
				"id":      n.ID,
				"code":    string(routeErr.Code),
				"details": routeErr.Details,
			})
			return
		}
		if d.navigate != nil {
			d.navigate(path)
		}
	})
	if err != nil {
		return err
	}

	if dismiss != nil && d.dismissAfter > 0 {
		time.AfterFunc(d.dismissAfter, dismiss)
	}
	return nil
}

// ToastSink publishes an in-app toast event on the bus, mapping notification
// priority onto toast severity.
type ToastSink struct {
	bus *Bus
}

func NewToastSink(bus *Bus) *ToastSink {
	return &ToastSink{bus: bus}
}

func (t *ToastSink) Name() string { return "toast" }

func (t *ToastSink) Deliver(n models.Notification) error {
	t.bus.Publish(TopicToast, ToastEvent{
		Notification: n,
		Severity:     SeverityFor(n.Priority),
	})
	return nil
}

// SeverityFor maps priority to toast severity: high is an error-styled toast,
// medium informational, low a success-styled one.
func SeverityFor(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return "error"
	case models.PriorityLow:
		return "success"
	default:
		return "info"
	}
}

// BusSink broadcasts every admitted notification on the bus so surfaces
// mounted outside the store's subscriber tree can still react.
type BusSink struct {
	bus *Bus
}

func NewBusSink(bus *Bus) *BusSink {
	return &BusSink{bus: bus}
}

func (b *BusSink) Name() string { return "bus" }

func (b *BusSink) Deliver(n models.Notification) error {
	b.bus.Publish(TopicNotification, n)
	return nil
}
