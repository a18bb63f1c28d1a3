// Package notifications delivers pipeline events to people and clients.
//
// Workflow code depends only on the Service interface. Events fan out to a
// websocket hub that pushes progress to clients subscribed to a project or
// draft, and to ntfy for the milestones worth a phone notification (mix
// complete, preview ready, failures). Either side degrades to a no-op when
// disabled in config.toml. Notifications are advisory and never a source of
// pipeline state.
package notifications
