package vzauth

import (
	"io"

	"github.com/vocalizeai/vzauth/internal/notify"
)

// Notification is a user-visible event such as "sign in again".
type Notification = notify.Event

// NotificationKind names a notification.
type NotificationKind = notify.Kind

// NotificationSink receives notifications from the manager's dispatcher.
// Emit runs on the dispatcher goroutine.
type NotificationSink = notify.Sink

const (
	NotifyReloginRequired = notify.KindReloginRequired
	NotifyLoginFailed     = notify.KindLoginFailed
	NotifyUnverified      = notify.KindUnverified
	NotifyLoggedOut       = notify.KindLoggedOut
	NotifyProfileOffline  = notify.KindProfileOffline
)

// NewChannelNotificationSink returns a sink that forwards notifications to
// a buffered channel.
func NewChannelNotificationSink(buffer int) *notify.ChannelSink {
	return notify.NewChannelSink(buffer)
}

// NewJSONNotificationSink writes one JSON object per notification to w.
func NewJSONNotificationSink(w io.Writer) *notify.JSONWriterSink {
	return notify.NewJSONWriterSink(w)
}
