// Package notify delivers per-recipient send notifications to whatever
// surface hosts the dispatch engine.
//
// Slog writes notifications to a structured logger and suits headless
// deployments. Redis publishes them as JSON to a pub/sub channel so a web
// UI or bot can surface them to users in real time.
package notify
