// Package notifications delivers push notifications for job lifecycle
// events via ntfy. When no topic is configured every call is a no-op.
package notifications
