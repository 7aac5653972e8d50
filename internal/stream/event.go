package stream

import (
	"bytes"
	"io"
)

// Event is one Server-Sent Events frame. An event with a Comment and no Data
// is written as a comment line, which clients ignore.
type Event struct {
	Data    []byte
	Comment string
}

// KeepAlive is the no-op pulse sent to hold idle connections open.
var KeepAlive = Event{Comment: "heartbeat"}

// WriteTo writes the frame in text/event-stream framing.
func (e Event) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	if e.Data == nil {
		buf.WriteString(": ")
		buf.WriteString(e.Comment)
		buf.WriteString("\n\n")
	} else {
		for _, line := range bytes.Split(e.Data, []byte("\n")) {
			buf.WriteString("data: ")
			buf.Write(line)
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}
