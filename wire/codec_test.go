package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/dvhost/dvhost/types"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := Message{
		Action: ActionPut,
		ID:     42,
		Node:   "/mainloop/cam/",
		Key:    "logLevel",
		Type:   types.TypeI32,
		Value:  "6",
	}
	if err := WriteFrame(&buf, want); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestReadFrameRejectsOversizePayload(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], MaxPayloadBytes+1)
	buf.Write(lenBuf[:])

	_, err := ReadFrame(&buf)
	if !errors.Is(err, types.ErrOversize) {
		t.Fatalf("expected ErrOversize, got %v", err)
	}
}

func TestErrorAndAckHelpers(t *testing.T) {
	e := Error(7, "value out of range")
	if e.Action != ActionError || e.ID != 7 || e.Value != "value out of range" {
		t.Fatalf("unexpected Error message: %+v", e)
	}
	a := Ack(ActionPut, 7)
	if a.Action != ActionPut || a.ID != 7 || a.Value != "" {
		t.Fatalf("unexpected Ack message: %+v", a)
	}
}

func TestJoinSplitList(t *testing.T) {
	items := []string{"a", "b", "c"}
	joined := JoinList(items)
	if joined != "a|b|c" {
		t.Fatalf("JoinList = %q", joined)
	}
	if got := SplitList(joined); len(got) != 3 || got[1] != "b" {
		t.Fatalf("SplitList = %v", got)
	}
	if got := SplitList(""); got != nil {
		t.Fatalf("SplitList(\"\") = %v, want nil", got)
	}
}
