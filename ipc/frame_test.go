package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/intake/types"
)

// encodeFrame encodes a payload with length prefix (matches shell output).
func encodeFrame(payload []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

func encodeShellFrame(t *testing.T, frame *ShellFrame) []byte {
	t.Helper()
	payload, err := msgpack.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return encodeFrame(payload)
}

func TestFrameDecoder_LaunchFrame(t *testing.T) {
	stream := types.Indirect("content://com.example/docs/9")
	data := encodeShellFrame(t, &ShellFrame{
		Type: FrameTypeLaunch,
		Event: &types.IntakeEvent{
			Action:    types.ActionSend,
			MediaType: types.MediaTypeLegacySpreadsheet,
			Stream:    &stream,
			ColdStart: true,
		},
	})

	dec := NewFrameDecoder(bytes.NewReader(data))
	payload, err := dec.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	frame, err := DecodeShellFrame(payload)
	if err != nil {
		t.Fatalf("DecodeShellFrame: %v", err)
	}
	if frame.Type != FrameTypeLaunch {
		t.Errorf("Type = %q", frame.Type)
	}
	if frame.Event == nil || frame.Event.Stream == nil {
		t.Fatalf("event not decoded: %+v", frame.Event)
	}
	if frame.Event.Stream.Raw != "content://com.example/docs/9" || frame.Event.Stream.Scheme != types.SchemeIndirect {
		t.Errorf("Stream = %+v", *frame.Event.Stream)
	}
	if !frame.Event.ColdStart {
		t.Error("ColdStart not decoded")
	}

	if _, err := dec.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after last frame, got %v", err)
	}
}

func TestFrameDecoder_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeShellFrame(t, &ShellFrame{Type: FrameTypeAttach}))
	buf.Write(encodeShellFrame(t, &ShellFrame{Type: FrameTypeResume, Event: &types.IntakeEvent{Action: types.ActionView}}))
	buf.Write(encodeShellFrame(t, &ShellFrame{Type: FrameTypeDetach}))

	dec := NewFrameDecoder(&buf)
	want := []string{FrameTypeAttach, FrameTypeResume, FrameTypeDetach}
	for i, w := range want {
		payload, err := dec.ReadFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		frame, err := DecodeShellFrame(payload)
		if err != nil {
			t.Fatalf("frame %d decode: %v", i, err)
		}
		if frame.Type != w {
			t.Errorf("frame %d type = %q, want %q", i, frame.Type, w)
		}
	}
}

func TestFrameDecoder_PartialLengthPrefix(t *testing.T) {
	dec := NewFrameDecoder(bytes.NewReader([]byte{0x00, 0x01}))
	_, err := dec.ReadFrame()

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %T: %v", err, err)
	}
	if frameErr.Kind != FrameErrorPartial || !frameErr.IsFatal() {
		t.Errorf("expected fatal partial error, got %+v", frameErr)
	}
}

func TestFrameDecoder_PartialPayload(t *testing.T) {
	data := encodeFrame([]byte{0x81, 0xa4})
	data = data[:len(data)-1]

	_, err := NewFrameDecoder(bytes.NewReader(data)).ReadFrame()
	if !IsFatalFrameError(err) {
		t.Fatalf("expected fatal frame error, got %v", err)
	}
}

func TestFrameDecoder_TooLarge(t *testing.T) {
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], MaxPayloadSize+1)

	_, err := NewFrameDecoder(bytes.NewReader(prefix[:])).ReadFrame()
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorTooLarge {
		t.Fatalf("expected too-large error, got %v", err)
	}
}

func TestDecodeShellFrame_Errors(t *testing.T) {
	unknown, _ := msgpack.Marshal(&ShellFrame{Type: "share_many"})
	noEvent, _ := msgpack.Marshal(&ShellFrame{Type: FrameTypeResume})

	tests := []struct {
		name     string
		payload  []byte
		wantKind FrameErrorKind
	}{
		{"garbage", []byte{0xc1}, FrameErrorDecode},
		{"unknown type", unknown, FrameErrorUnknownType},
		{"resume without event", noEvent, FrameErrorDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeShellFrame(tt.payload)
			var frameErr *FrameError
			if !errors.As(err, &frameErr) {
				t.Fatalf("expected *FrameError, got %T: %v", err, err)
			}
			if frameErr.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", frameErr.Kind, tt.wantKind)
			}
			if frameErr.IsFatal() {
				t.Error("decode errors must not be fatal")
			}
		})
	}
}

func TestFrameEncoder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf)
	if err := enc.Encode(&ShellFrame{Type: FrameTypeDetach}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	payload, err := NewFrameDecoder(&buf).ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	frame, err := DecodeShellFrame(payload)
	if err != nil {
		t.Fatalf("DecodeShellFrame: %v", err)
	}
	if frame.Type != FrameTypeDetach {
		t.Errorf("Type = %q", frame.Type)
	}
}

func TestFrameEncoder_RejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	err := NewFrameEncoder(&buf).WriteFrame(make([]byte, MaxPayloadSize+1))
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorTooLarge {
		t.Fatalf("expected too-large error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written for an oversized payload")
	}
}

func TestEndpoint_WritesMethodCall(t *testing.T) {
	var buf bytes.Buffer
	ep := NewEndpoint(&buf)

	err := ep.HandleFileReceived(t.Context(), &types.FileReceived{
		Channel:   types.DefaultChannel,
		Method:    types.MethodFileReceived,
		Path:      "/cache/received_1-1.xlsx",
		Staged:    true,
		Timestamp: "2026-03-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("HandleFileReceived: %v", err)
	}

	payload, err := NewFrameDecoder(&buf).ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	var call MethodCallFrame
	if err := msgpack.Unmarshal(payload, &call); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if call.Type != FrameTypeMethodCall || call.Method != "onFileReceived" {
		t.Errorf("unexpected call header: %+v", call)
	}
	if len(call.Args) != 1 || call.Args[0] != "/cache/received_1-1.xlsx" {
		t.Errorf("Args = %v", call.Args)
	}
	if !call.Staged || call.Channel != types.DefaultChannel {
		t.Errorf("unexpected call: %+v", call)
	}
}
