package pipeline

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory classifies bus errors for the abort log. A recording
// session never retries, but knowing whether the stream, the decoder,
// or the artifact store failed is what makes the single abort line
// actionable.
type ErrorCategory int

const (
	// ErrCategoryStream indicates acquisition failures (connection,
	// timeout, source not found).
	ErrCategoryStream ErrorCategory = iota
	// ErrCategoryCodec indicates decode or caps negotiation failures.
	ErrCategoryCodec
	// ErrCategoryStorage indicates artifact write failures (disk,
	// permissions, output path).
	ErrCategoryStorage
	// ErrCategoryUnknown indicates unclassified errors.
	ErrCategoryUnknown
)

// String returns a human-readable category name.
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryStream:
		return "stream"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// classifyError categorizes a bus error by message heuristics; the
// bindings do not expose the error domain.
func classifyError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return classifyText(gerr.Error(), gerr.DebugString())
}

// classifyText classifies by error and debug text.
func classifyText(errMsg, debug string) ErrorCategory {
	combined := strings.ToLower(errMsg + " " + debug)

	switch {
	case containsAny(combined, storageKeywords):
		return ErrCategoryStorage
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, streamKeywords):
		return ErrCategoryStream
	default:
		return ErrCategoryUnknown
	}
}

var streamKeywords = []string{
	"connection",
	"timeout",
	"unreachable",
	"network",
	"resolve",
	"socket",
	"rtsp",
	"could not connect",
	"failed to connect",
	"not found",
}

var codecKeywords = []string{
	"codec",
	"decode",
	"format",
	"negotiation",
	"caps",
	"h264",
	"h265",
	"not negotiated",
	"no decoder",
	"missing plugin",
}

var storageKeywords = []string{
	"no space",
	"read-only",
	"permission denied",
	"could not open file",
	"could not write",
	"disk",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
