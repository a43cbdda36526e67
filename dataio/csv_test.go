package dataio

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go_kunquant/kunruntime"
)

func TestReadPanel_WithHeader(t *testing.T) {
	in := "AAA,BBB,CCC\n1,2,3\n4,,6\n"

	p, err := ReadPanel(strings.NewReader(in), HeaderAuto)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(p.Names, ",") != "AAA,BBB,CCC" {
		t.Errorf("Names = %v", p.Names)
	}
	if p.Stocks != 3 || p.Times != 2 {
		t.Fatalf("shape = %dx%d", p.Times, p.Stocks)
	}
	if p.At(1, 0) != 4 || p.At(0, 2) != 3 {
		t.Errorf("data = %v", p.Data)
	}
	if !math.IsNaN(float64(p.At(1, 1))) {
		t.Errorf("empty cell = %v, want NaN", p.At(1, 1))
	}
}

func TestReadPanel_NoHeader(t *testing.T) {
	p, err := ReadPanel(strings.NewReader("1.5, NaN\n-2,3e2\n"), HeaderAuto)
	if err != nil {
		t.Fatal(err)
	}
	if p.Names != nil {
		t.Errorf("unexpected header %v", p.Names)
	}
	want := []float32{1.5, float32(math.NaN()), -2, 300}
	for i, v := range want {
		got := p.Data[i]
		if math.IsNaN(float64(v)) != math.IsNaN(float64(got)) || (!math.IsNaN(float64(v)) && got != v) {
			t.Errorf("Data[%d] = %v, want %v", i, got, v)
		}
	}
}

func TestReadPanel_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ragged", "1,2\n3\n", "columns"},
		{"bad cell", "1,2\n3,x\n", "line 2 column 2"},
		{"header only", "a,b\n", ErrEmptyPanel.Error()},
		{"empty", "", ErrEmptyPanel.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPanel(strings.NewReader(tt.in), HeaderAuto)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestWritePanel_RoundTripShape(t *testing.T) {
	m := kunruntime.NewMatrix(2, 2)
	m.Set(0, 0, 1)
	m.Set(0, 1, float32(math.NaN()))
	m.Set(1, 0, 0.25)
	m.Set(1, 1, -3)

	var buf bytes.Buffer
	if err := WritePanel(&buf, m, []string{"x", "y"}); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "x,y\n1,\n0.25,-3\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	if err := WritePanel(&buf, m, []string{"only-one"}); err == nil {
		t.Error("expected header width error")
	}
}

func TestWritePanelFile_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "factor.csv")

	m := kunruntime.NewMatrix(8, 3)
	for i := range m.Data {
		m.Data[i] = float32(i)
	}
	if err := WritePanelFile(path, m, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path + ".partial"); !errors.Is(err, os.ErrNotExist) {
		t.Error("partial file left behind")
	}
	p, err := ReadPanelFile(path, HeaderAuto)
	if err != nil {
		t.Fatal(err)
	}
	if p.Stocks != 8 || p.Times != 3 || p.At(2, 7) != 23 {
		t.Errorf("read back %dx%d, last = %v", p.Times, p.Stocks, p.At(2, 7))
	}
}

func TestOutputFile_Abort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aborted.csv")
	f, err := CreateOutput(path, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteRow([]float32{1, 2})
	if err := f.WriteRow([]float32{1}); err == nil {
		t.Error("short row accepted")
	}
	f.Abort()

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 0 {
		t.Errorf("files left after Abort: %v", entries)
	}
	if err := f.Commit(); err != nil {
		t.Errorf("Commit after Abort: %v", err)
	}
}

func TestReadPanelFile_Missing(t *testing.T) {
	if _, err := ReadPanelFile(filepath.Join(t.TempDir(), "nope.csv"), HeaderAuto); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("got %v", err)
	}
}

func TestRowReader_Incremental(t *testing.T) {
	rr := NewRowReader(strings.NewReader("s0,s1\n1,2\n3,4\n"), HeaderAuto)
	if rr.Width() != -1 {
		t.Errorf("Width before reading = %d", rr.Width())
	}

	var got []float32
	for {
		row, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, row...)
	}

	if len(got) != 4 || got[3] != 4 {
		t.Errorf("rows = %v", got)
	}
	if rr.Width() != 2 || strings.Join(rr.Header(), ",") != "s0,s1" {
		t.Errorf("width=%d header=%v", rr.Width(), rr.Header())
	}
}

func TestReadPanel_NumericStockCodes(t *testing.T) {
	in := "000001,600000\n1.5,2.5\n3.5,4.5\n"

	tests := []struct {
		name      string
		mode      HeaderMode
		wantTimes int
		wantNames []string
	}{
		// auto cannot tell codes from values
		{"auto", HeaderAuto, 3, nil},
		{"present", HeaderPresent, 2, []string{"000001", "600000"}},
		{"absent", HeaderAbsent, 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ReadPanel(strings.NewReader(in), tt.mode)
			if err != nil {
				t.Fatalf("ReadPanel: %v", err)
			}
			if p.Times != tt.wantTimes || p.Stocks != 2 {
				t.Fatalf("shape %dx%d, want %dx2", p.Times, p.Stocks, tt.wantTimes)
			}
			if strings.Join(p.Names, ",") != strings.Join(tt.wantNames, ",") {
				t.Errorf("Names = %v, want %v", p.Names, tt.wantNames)
			}
			if tt.mode == HeaderPresent && p.At(0, 0) != 1.5 {
				t.Errorf("first value = %v, want 1.5", p.At(0, 0))
			}
		})
	}
}

func TestReadPanel_HeaderAbsentRejectsNames(t *testing.T) {
	if _, err := ReadPanel(strings.NewReader("AAPL,MSFT\n1,2\n"), HeaderAbsent); err == nil {
		t.Error("expected a parse error for a name row when no header is expected")
	}
}

func TestWritePanelFile_NumericHeaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.csv")
	m := kunruntime.NewMatrix(2, 1)
	m.Set(0, 0, 7)
	m.Set(0, 1, 8)

	if err := WritePanelFile(path, m, []string{"000001", "600000"}); err != nil {
		t.Fatal(err)
	}
	p, err := ReadPanelFile(path, HeaderPresent)
	if err != nil {
		t.Fatal(err)
	}
	if p.Times != 1 || p.Names[1] != "600000" || p.At(0, 1) != 8 {
		t.Errorf("read back names=%v times=%d data=%v", p.Names, p.Times, p.Data)
	}
}

func TestParseHeaderMode(t *testing.T) {
	tests := map[string]HeaderMode{
		"": HeaderAuto, "auto": HeaderAuto, "TRUE": HeaderPresent, "yes": HeaderPresent,
		"false": HeaderAbsent, "no": HeaderAbsent,
	}
	for in, want := range tests {
		if got, err := ParseHeaderMode(in); err != nil || got != want {
			t.Errorf("ParseHeaderMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseHeaderMode("sometimes"); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}

func TestCommitAll_RollsBackOnFailure(t *testing.T) {
	dir := t.TempDir()
	first, err := CreateOutput(filepath.Join(dir, "a.csv"), 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := CreateOutput(filepath.Join(dir, "b.csv"), 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	third, err := CreateOutput(filepath.Join(dir, "c.csv"), 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range []*OutputFile{first, second, third} {
		f.WriteRow([]float32{1, 2})
	}

	// DOING: b.csv is taken by a non-empty directory, so its rename fails
	if err := os.MkdirAll(filepath.Join(dir, "b.csv", "keep"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := CommitAll([]*OutputFile{first, second, third}); err == nil {
		t.Fatal("expected commit failure")
	}

	// EXPECT: only the blocking directory is left
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "b.csv" || !entries[0].IsDir() {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("left behind: %v", names)
	}
}
