package arena

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Fixed layout of the user context record handed to the smart-record
// capability. The pipeline stores the buffer verbatim alongside the
// recording and echoes it back on completion, so the layout must be
// stable: a native 32-bit session id followed by a fixed 32-byte
// NUL-padded name field.
const (
	// SessionKeySize is the size of the standalone session key buffer.
	SessionKeySize = 4

	// ContextNameSize is the fixed size of the name field.
	ContextNameSize = 32

	// ContextSize is the total size of the user context record.
	ContextSize = 4 + ContextNameSize
)

// RecordContext is the typed view over the user context buffer.
type RecordContext struct {
	SessionID uint32
	Name      string
}

// PutRecordContext writes rc into buf using the fixed layout. Names
// longer than the field are truncated; shorter names are NUL padded.
func PutRecordContext(buf []byte, rc RecordContext) error {
	if len(buf) < ContextSize {
		return fmt.Errorf("arena: context buffer too small: %d < %d", len(buf), ContextSize)
	}

	binary.NativeEndian.PutUint32(buf[0:4], rc.SessionID)

	name := buf[4 : 4+ContextNameSize]
	for i := range name {
		name[i] = 0
	}
	copy(name, rc.Name)

	return nil
}

// ParseRecordContext reads a RecordContext back from buf. The name is
// truncated at the first NUL byte.
func ParseRecordContext(buf []byte) (RecordContext, error) {
	if len(buf) < ContextSize {
		return RecordContext{}, fmt.Errorf("arena: context buffer too small: %d < %d", len(buf), ContextSize)
	}

	rc := RecordContext{
		SessionID: binary.NativeEndian.Uint32(buf[0:4]),
	}

	name := buf[4 : 4+ContextNameSize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	rc.Name = string(name)

	return rc, nil
}

// PutSessionKey writes the 32-bit session key into its standalone
// buffer (the first argument of the start trigger).
func PutSessionKey(buf []byte, key uint32) error {
	if len(buf) < SessionKeySize {
		return fmt.Errorf("arena: session key buffer too small: %d < %d", len(buf), SessionKeySize)
	}
	binary.NativeEndian.PutUint32(buf[0:SessionKeySize], key)
	return nil
}
