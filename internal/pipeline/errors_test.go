package pipeline

import "testing"

func TestClassifyText(t *testing.T) {
	cases := []struct {
		name  string
		msg   string
		debug string
		want  ErrorCategory
	}{
		{"connection_refused", "Could not connect to server", "rtspsrc", ErrCategoryStream},
		{"timeout", "request timeout", "", ErrCategoryStream},
		{"source_missing", "Resource not found", "404", ErrCategoryStream},
		{"caps", "streaming stopped, reason not-negotiated", "caps mismatch", ErrCategoryCodec},
		{"decoder", "no decoder available", "", ErrCategoryCodec},
		{"missing_plugin", "Your GStreamer installation is missing plugin", "", ErrCategoryCodec},
		{"disk_full", "No space left on device", "filesink", ErrCategoryStorage},
		{"permissions", "Permission denied", "could not open file for writing", ErrCategoryStorage},
		{"unclassified", "internal data flow problem", "", ErrCategoryUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyText(tc.msg, tc.debug); got != tc.want {
				t.Errorf("classifyText(%q, %q) = %s, want %s", tc.msg, tc.debug, got, tc.want)
			}
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if got := classifyError(nil); got != ErrCategoryUnknown {
		t.Errorf("classifyError(nil) = %s, want unknown", got)
	}
}
