// Package logline defines the per-realization structured log line contract
// shared by every component that reports progress, retries, or per-node
// load detail: a three-level sink producing lines of the form
// "[iens:step1-step2] <message>".
package logline

import "fmt"

// Level distinguishes the three log levels the orchestrator emits at:
// retry/fail (most important, least frequent), normal progress, and
// per-node load detail (least important, most frequent).
type Level int

const (
	LevelRetryFail Level = 1
	LevelProgress  Level = 2
	LevelNodeDetail Level = 3
)

// Sink is the log collaborator the orchestrator and its component readers
// depend on. It is shared read-only; callers never mutate it beyond
// emitting lines.
type Sink interface {
	Log(level Level, iens, step1, step2 int, msg string)
}

// Format renders msg with the "[iens:step1-step2]" prefix every structured
// log line uses.
func Format(iens, step1, step2 int, msg string) string {
	return fmt.Sprintf("[%d:%d-%d] %s", iens, step1, step2, msg)
}

// Logf is a convenience wrapper combining Format and a Printf-style
// message body.
func Logf(s Sink, level Level, iens, step1, step2 int, format string, args ...any) {
	if s == nil {
		return
	}
	s.Log(level, iens, step1, step2, fmt.Sprintf(format, args...))
}
