// Package triage orchestrates the complaint pipeline: feature extraction,
// classification, deduplication, and routing, under a hard latency budget.
// The Engine is the pure pipeline; the Service wraps it with identity,
// persistence, and notification.
package triage
