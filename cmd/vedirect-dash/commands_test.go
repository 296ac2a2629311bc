package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shaunagostinho/vedirect-dash/internal/vedirect"
)

func capture() []byte {
	good := vedirect.Encode(
		vedirect.RawField{Label: "PID", Value: "0x203"},
		vedirect.RawField{Label: "V", Value: "12800"},
		vedirect.RawField{Label: "SOC", Value: "876"},
	)
	corrupt := append([]byte(nil), good...)
	corrupt[8] ^= 0x01
	tail := vedirect.Encode(
		vedirect.RawField{Label: "PID", Value: "0xA053"},
		vedirect.RawField{Label: "V", Value: "13500"},
	)

	var data []byte
	data = append(data, good...)
	data = append(data, corrupt...)
	data = append(data, good...)
	data = append(data, tail[:12]...)
	return data
}

func decodeLines(t *testing.T, out []byte) []map[string]any {
	t.Helper()
	var lines []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad json line %q: %v", sc.Text(), err)
		}
		lines = append(lines, m)
	}
	return lines
}

func TestRunDecode(t *testing.T) {
	for _, chunk := range []int{0, 1, 7} {
		var out, errOut bytes.Buffer
		err := runDecode(bytes.NewReader(capture()), &out, &errOut, decodeOptions{
			chunk:     chunk,
			maxFields: vedirect.DefaultMaxFields,
		})
		if err != nil {
			t.Fatalf("chunk %d: %v", chunk, err)
		}

		lines := decodeLines(t, out.Bytes())
		if len(lines) != 4 {
			t.Fatalf("chunk %d: got %d lines, want 4:\n%s", chunk, len(lines), out.String())
		}
		if lines[0]["class"] != "battery_monitor" || lines[0]["record"] == nil {
			t.Errorf("chunk %d: line 0 = %v", chunk, lines[0])
		}
		if lines[1]["kind"] != "checksum_mismatch" {
			t.Errorf("chunk %d: line 1 = %v", chunk, lines[1])
		}
		if lines[2]["class"] != "battery_monitor" {
			t.Errorf("chunk %d: line 2 = %v", chunk, lines[2])
		}
		if lines[3]["kind"] != "end_of_stream" {
			t.Errorf("chunk %d: line 3 = %v", chunk, lines[3])
		}

		if !strings.Contains(errOut.String(), "records=2 checksum_mismatch=1") {
			t.Errorf("chunk %d: tally = %q", chunk, errOut.String())
		}
	}
}

func TestRunDecodeSummary(t *testing.T) {
	var out, errOut bytes.Buffer
	err := runDecode(bytes.NewReader(capture()), &out, &errOut, decodeOptions{
		summary:   true,
		maxFields: vedirect.DefaultMaxFields,
	})
	if err != nil {
		t.Fatal(err)
	}
	lines := decodeLines(t, out.Bytes())
	s, ok := lines[0]["summary"].(map[string]any)
	if !ok {
		t.Fatalf("line 0 has no summary: %v", lines[0])
	}
	if s["voltage"] != 12.8 {
		t.Errorf("voltage = %v, want 12.8", s["voltage"])
	}
	if _, ok := lines[0]["record"]; ok {
		t.Error("summary mode should omit the record")
	}
}

func TestChunkReader(t *testing.T) {
	cr := &chunkReader{r: strings.NewReader("abcdef"), n: 4}
	buf := make([]byte, 16)
	n, _ := cr.Read(buf)
	if n != 4 {
		t.Errorf("first read = %d, want 4", n)
	}
	n, _ = cr.Read(buf)
	if n != 2 {
		t.Errorf("second read = %d, want 2", n)
	}
}
