// Package report decodes smart-record completion payloads into
// human-readable session results. Every decode failure is non-fatal:
// missing or malformed fields render as explicit fallback text so a
// partially decoded completion still produces a usable summary.
package report

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/e7canasta/smartrec/internal/arena"
)

// fallback is the text emitted for fields the payload did not carry.
const fallback = "<unavailable>"

// CompletionInfo is the decoded completion payload: where the artifact
// was written and what it contains. Zero values mark fields the
// pipeline did not report.
type CompletionInfo struct {
	Dir      string
	File     string
	Width    int
	Height   int
	Duration time.Duration
	Session  uint32
}

// Record is the full session result: the completion payload plus the
// user context echoed back by the pipeline. Read-only after creation.
type Record struct {
	Info    CompletionInfo
	Context arena.RecordContext
	HasCtx  bool
}

// DecodeEchoedContext parses the context bytes echoed on completion.
// A short or missing echo yields ok=false, never an error that aborts
// the session.
func DecodeEchoedContext(echo []byte) (arena.RecordContext, bool) {
	if len(echo) == 0 {
		return arena.RecordContext{}, false
	}
	rc, err := arena.ParseRecordContext(echo)
	if err != nil {
		slog.Warn("report: echoed context undecodable", "error", err, "bytes", len(echo))
		return arena.RecordContext{}, false
	}
	return rc, true
}

// Summary renders the record as a single human-readable line.
func Summary(r Record) string {
	var b strings.Builder

	b.WriteString("recording complete:")
	b.WriteString(" dir=")
	b.WriteString(orFallback(r.Info.Dir))
	b.WriteString(" file=")
	b.WriteString(orFallback(r.Info.File))

	if r.Info.Width > 0 && r.Info.Height > 0 {
		fmt.Fprintf(&b, " size=%dx%d", r.Info.Width, r.Info.Height)
	} else {
		b.WriteString(" size=" + fallback)
	}

	if r.Info.Duration > 0 {
		fmt.Fprintf(&b, " duration=%s", r.Info.Duration)
	}

	if r.HasCtx {
		fmt.Fprintf(&b, " session.id=%d session.name=%q", r.Context.SessionID, r.Context.Name)
	} else {
		b.WriteString(" session=" + fallback)
	}

	return b.String()
}

// Emit logs the summary. Side-effect only; never mutates the record.
func Emit(r Record) {
	slog.Info("report: " + Summary(r))
}

func orFallback(s string) string {
	if s == "" {
		return fallback
	}
	return s
}
