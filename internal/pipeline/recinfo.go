package pipeline

import (
	"time"
	"unsafe"

	"github.com/e7canasta/smartrec/internal/report"
)

// nativeRecordingInfo mirrors the layout of the recording-info record
// the source bin passes on completion. Field order and sizes must match
// the native definition; the leading pointer is the bin's internal
// context and is not dereferenced here.
type nativeRecordingInfo struct {
	ctx           unsafe.Pointer
	sessionID     uint32
	_             [4]byte
	filename      *byte
	dirpath       *byte
	durationMS    uint64
	containerType int32
	width         int32
	height        int32
}

// cStringMax bounds NUL scans over native strings so a corrupt payload
// cannot run away.
const cStringMax = 4096

// decodeRecordingInfo extracts the completion payload best-effort: a
// nil pointer or nil string fields yield zero values, never a fault.
func decodeRecordingInfo(infoPtr unsafe.Pointer) report.CompletionInfo {
	if infoPtr == nil {
		return report.CompletionInfo{}
	}

	raw := (*nativeRecordingInfo)(infoPtr)

	return report.CompletionInfo{
		Dir:      goString(raw.dirpath),
		File:     goString(raw.filename),
		Width:    int(raw.width),
		Height:   int(raw.height),
		Duration: time.Duration(raw.durationMS) * time.Millisecond,
		Session:  raw.sessionID,
	}
}

// goString copies a NUL-terminated native string.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	buf := make([]byte, 0, 64)
	for i := 0; i < cStringMax; i++ {
		b := *(*byte)(unsafe.Add(unsafe.Pointer(p), i))
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf)
}
