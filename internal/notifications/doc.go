// Package notifications delivers audit events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Per-event
// toggles (notifications.audit_completed, notifications.errors) suppress
// events without touching callers, which depend only on Service.
package notifications
