package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dvhost/dvhost/types"
)

// ReadFrame reads one u32-length-prefixed payload from r and decodes it as a
// Message. A payload larger than MaxPayloadBytes is a protocol violation:
// the caller must close the connection on ErrOversize.
func ReadFrame(r io.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Message{}, fmt.Errorf("%w: reading frame length: %v", types.ErrTransport, err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxPayloadBytes {
		return Message{}, types.ErrOversize
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, fmt.Errorf("%w: reading frame payload: %v", types.ErrTransport, err)
	}
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("%w: decoding payload: %v", types.ErrParse, err)
	}
	return m, nil
}

// WriteFrame encodes m and writes it as a single u32-length-prefixed frame.
func WriteFrame(w io.Writer, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %v", types.ErrParse, err)
	}
	if len(payload) > MaxPayloadBytes {
		return types.ErrOversize
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("%w: writing frame length: %v", types.ErrTransport, err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("%w: writing frame payload: %v", types.ErrTransport, err)
	}
	return nil
}
