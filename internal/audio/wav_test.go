package audio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04, 0x00}
	wav, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Errorf("bad container magic: % x", wav[0:12])
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1 (mono)", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("bits per sample = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Error("payload bytes not preserved")
	}
}

func TestEncodeWAVRejectsBadInput(t *testing.T) {
	cases := []struct {
		name       string
		pcm        []byte
		sampleRate int
	}{
		{"empty payload", nil, 16000},
		{"odd length", []byte{1, 2, 3}, 16000},
		{"zero sample rate", []byte{1, 2}, 0},
		{"negative sample rate", []byte{1, 2}, -8000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := EncodeWAV(tc.pcm, tc.sampleRate); err == nil {
				t.Errorf("EncodeWAV(%v, %d) = nil error, want failure", tc.pcm, tc.sampleRate)
			}
		})
	}
}

func TestSpoolWriteAndCleanup(t *testing.T) {
	root := t.TempDir()
	s := NewSpool(root)

	path, err := s.WriteChunk("meeting-1", 7, []byte("wav-bytes"))
	if err != nil {
		t.Fatalf("WriteChunk failed: %v", err)
	}
	want := filepath.Join(root, "meeting-1", "chunk_0007.wav")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading spooled chunk: %v", err)
	}
	if string(data) != "wav-bytes" {
		t.Errorf("spooled data = %q", data)
	}

	// Re-upload overwrites the same file.
	if _, err := s.WriteChunk("meeting-1", 7, []byte("replaced")); err != nil {
		t.Fatalf("second WriteChunk failed: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "replaced" {
		t.Errorf("spooled data after re-upload = %q, want %q", data, "replaced")
	}

	if err := s.Cleanup("meeting-1"); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "meeting-1")); !os.IsNotExist(err) {
		t.Error("meeting spool directory still exists after Cleanup")
	}
}

func TestSpoolDisabled(t *testing.T) {
	s := NewSpool("")
	path, err := s.WriteChunk("m", 0, []byte("x"))
	if err != nil {
		t.Fatalf("disabled spool WriteChunk failed: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty for disabled spool", path)
	}
}
