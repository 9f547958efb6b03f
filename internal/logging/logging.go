// Package logging configures structured logging and emits the named
// observability events for ingestion runs, streams and reporting.
package logging

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/leynos/ghillie/internal/faults"
)

// Setup configures the global logrus logger. An unrecognized level falls
// back to INFO and logs a warning rather than failing startup.
func Setup(level string) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	parsed, err := parseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		log.WithField("level", level).Warn("unrecognized log level, defaulting to INFO")
		return
	}
	log.SetLevel(parsed)
}

// parseLevel accepts the operator-facing level names, which are a
// superset of logrus's own (WARNING and CRITICAL aliases).
func parseLevel(level string) (log.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "WARNING":
		return log.WarnLevel, nil
	case "CRITICAL":
		return log.FatalLevel, nil
	}
	return log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
}

// RunStarted logs the start of a per-repository ingestion run.
func RunStarted(repoSlug, estateID string) {
	log.WithFields(log.Fields{
		"event":     "ingestion.run.started",
		"repo_slug": repoSlug,
		"estate_id": estateID,
	}).Info("ingestion run started")
}

// RunCompleted logs a successful ingestion run with per-kind counts.
func RunCompleted(repoSlug, estateID string, duration time.Duration, kindCounts map[string]int, total int) {
	fields := log.Fields{
		"event":            "ingestion.run.completed",
		"repo_slug":        repoSlug,
		"estate_id":        estateID,
		"duration_seconds": duration.Seconds(),
		"total_events":     total,
	}
	for kind, n := range kindCounts {
		fields["ingested_"+kind] = n
	}
	log.WithFields(fields).Info("ingestion run completed")
}

// RunFailed logs an aborted ingestion run with its error classification.
func RunFailed(repoSlug, estateID string, duration time.Duration, err error) {
	log.WithFields(log.Fields{
		"event":            "ingestion.run.failed",
		"repo_slug":        repoSlug,
		"estate_id":        estateID,
		"duration_seconds": duration.Seconds(),
		"error_type":       typeName(err),
		"error_category":   string(faults.Categorize(err)),
		"error_message":    err.Error(),
	}).Error("ingestion run failed")
}

// StreamCompleted logs a cleanly drained ingestion stream.
func StreamCompleted(repoSlug, kind string, processed, maxEvents int) {
	log.WithFields(log.Fields{
		"event":             "ingestion.stream.completed",
		"repo_slug":         repoSlug,
		"stream_kind":       kind,
		"events_processed":  processed,
		"max_events":        maxEvents,
		"has_resume_cursor": false,
	}).Info("ingestion stream completed")
}

// StreamTruncated logs a stream that hit the per-kind cap and persisted a
// resume cursor.
func StreamTruncated(repoSlug, kind string, processed, maxEvents int) {
	log.WithFields(log.Fields{
		"event":             "ingestion.stream.truncated",
		"repo_slug":         repoSlug,
		"stream_kind":       kind,
		"events_processed":  processed,
		"max_events":        maxEvents,
		"has_resume_cursor": true,
	}).Warn("ingestion stream truncated")
}

// ReportStarted logs the start of report generation.
func ReportStarted(repoSlug, model string) {
	log.WithFields(log.Fields{
		"event":     "reporting.report.started",
		"repo_slug": repoSlug,
		"model":     model,
	}).Info("report generation started")
}

// ReportCompleted logs a persisted report with model usage metrics.
func ReportCompleted(repoSlug, model string, latencyMS, promptTokens, completionTokens int64) {
	log.WithFields(log.Fields{
		"event":             "reporting.report.completed",
		"repo_slug":         repoSlug,
		"model":             model,
		"latency_ms":        latencyMS,
		"prompt_tokens":     promptTokens,
		"completion_tokens": completionTokens,
		"total_tokens":      promptTokens + completionTokens,
	}).Info("report generation completed")
}

// ReportFailed logs a failed report generation attempt.
func ReportFailed(repoSlug, model string, err error) {
	log.WithFields(log.Fields{
		"event":          "reporting.report.failed",
		"repo_slug":      repoSlug,
		"model":          model,
		"error_category": string(faults.Categorize(err)),
		"error_message":  err.Error(),
	}).Error("report generation failed")
}

func typeName(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%T", err)
}
