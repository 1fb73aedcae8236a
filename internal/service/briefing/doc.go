// Package briefing assembles the morning briefing campaign: it selects
// articles for the digest window and the eligible recipient set. It performs
// no sends; dispatch belongs to internal/worker.
package briefing
