package protocol

import (
	"bufio"
	"io"

	"github.com/juju/errors"
)

// MaxFramePayload is the largest payload a single physical frame can carry
// before it must be split into a continuation.
const MaxFramePayload = 0xFFFFFF - 1

// ProtocolError is raised by the framer on sequence mismatches, truncated
// reads, or any other violation of the packet-framing contract.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

// ConnectionClosed signals that the underlying stream was closed, either
// by the peer or by the caller tearing down the connection.
type ConnectionClosed struct {
	Reason string
}

func (e *ConnectionClosed) Error() string {
	if e.Reason == "" {
		return "connection closed"
	}
	return "connection closed: " + e.Reason
}

// Framer splits a duplex byte stream into logical packets of the form
// len:u24 | seq:u8 | payload[len], reassembling payloads that span more
// than one 16 MiB physical frame, and enforces the single-consumer
// sequence-id discipline described for the connection phase and the
// command phase.
type Framer struct {
	r   *bufio.Reader
	w   io.Writer
	seq byte
}

// NewFramer wraps a stream for packet-level reads and writes.
func NewFramer(rw io.ReadWriter) *Framer {
	return &Framer{
		r: bufio.NewReaderSize(rw, 16*1024),
		w: rw,
	}
}

// ResetSeq zeroes the sequence counter. Invoked after a successful
// authentication and at the end of every command-phase iteration
// regardless of its outcome.
func (f *Framer) ResetSeq() {
	f.seq = 0
}

// Seq returns the next sequence id that will be used for a write or that
// is expected of the next read.
func (f *Framer) Seq() byte {
	return f.seq
}

// ReadPacket reads one logical packet, reassembling continuation frames.
func (f *Framer) ReadPacket() ([]byte, error) {
	var payload []byte
	for {
		header := make([]byte, 4)
		if _, err := io.ReadFull(f.r, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, &ConnectionClosed{Reason: err.Error()}
			}
			return nil, errors.Trace(err)
		}
		length := uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16
		seq := header[3]
		if seq != f.seq {
			return nil, &ProtocolError{Reason: "sequence id mismatch"}
		}
		f.seq++

		frame := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(f.r, frame); err != nil {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					return nil, &ConnectionClosed{Reason: err.Error()}
				}
				return nil, errors.Trace(err)
			}
		}
		payload = append(payload, frame...)

		if length < 0xFFFFFF {
			return payload, nil
		}
	}
}

// WritePacket writes one logical packet, splitting it into 0xFFFFFF-byte
// physical frames as needed. A payload whose length is an exact multiple
// of 0xFFFFFF emits a trailing zero-length frame so the reader can tell
// the logical packet is complete.
func (f *Framer) WritePacket(payload []byte) error {
	for {
		if len(payload) < 0xFFFFFF {
			return f.writeFrame(payload)
		}
		if err := f.writeFrame(payload[:0xFFFFFF]); err != nil {
			return err
		}
		payload = payload[0xFFFFFF:]
	}
}

func (f *Framer) writeFrame(chunk []byte) error {
	header := []byte{
		byte(len(chunk)),
		byte(len(chunk) >> 8),
		byte(len(chunk) >> 16),
		f.seq,
	}
	f.seq++
	if _, err := f.w.Write(header); err != nil {
		return errors.Trace(err)
	}
	if len(chunk) > 0 {
		if _, err := f.w.Write(chunk); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
