package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Sample
		wantErr   bool
		wantField string
	}{
		{
			name:  "valid line",
			input: "129891,12,3,1,734.5,2385,Cookiezi - Freedom Dive,HDHR",
			want: Sample{
				Name:   "Cookiezi - Freedom Dive",
				Target: 734.5,
				Input: Input{
					MapID:     129891,
					CountOk:   12,
					CountMeh:  3,
					CountMiss: 1,
					Combo:     2385,
					Mods:      "HDHR",
				},
			},
		},
		{
			name:  "zero combo and empty mods",
			input: "1,0,0,0,100,0,nomod play,",
			want: Sample{
				Name:   "nomod play",
				Target: 100,
				Input:  Input{MapID: 1},
			},
		},
		{
			name:  "crlf line ending",
			input: "2,0,0,0,50,0,x,DT\r",
			want: Sample{
				Name:   "x",
				Target: 50,
				Input:  Input{MapID: 2, Mods: "DT"},
			},
		},
		{
			name:      "non-numeric id",
			input:     "abc,0,0,0,100,0,name,HD",
			wantErr:   true,
			wantField: "id",
		},
		{
			name:      "non-numeric target",
			input:     "1,0,0,0,lots,0,name,HD",
			wantErr:   true,
			wantField: "target",
		},
		{
			name:      "negative miss count",
			input:     "1,0,0,-1,100,0,name,HD",
			wantErr:   true,
			wantField: "count_miss",
		},
		{
			name:    "missing fields",
			input:   "1,0,0,0,100,0,name",
			wantErr: true,
		},
		{
			name:    "comma in name",
			input:   "1,0,0,0,100,0,a,b,HD",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedLine) {
					t.Errorf("error %v does not wrap ErrMalformedLine", err)
				}
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("error %T is not *ParseError", err)
				}
				if pe.Field != tt.wantField {
					t.Errorf("Field = %q, want %q", pe.Field, tt.wantField)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseLine() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParse_PreservesOrder(t *testing.T) {
	input := strings.Join([]string{
		"3,0,0,0,300,0,third-in-id,",
		"1,0,0,0,100,0,first-in-id,",
		"2,0,0,0,200,0,second-in-id,",
	}, "\n") + "\n"

	d, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}

	wantIDs := []int{3, 1, 2}
	for i, s := range d.Samples {
		if s.Input.MapID != wantIDs[i] {
			t.Errorf("sample[%d].MapID = %d, want %d", i, s.Input.MapID, wantIDs[i])
		}
		if s.Line != i+1 {
			t.Errorf("sample[%d].Line = %d, want %d", i, s.Line, i+1)
		}
	}
}

func TestParse_FatalOnBadLine(t *testing.T) {
	input := "1,0,0,0,100,0,ok,\nx1,0,0,0,100,0,bad,\n3,0,0,0,100,0,ok,\n"

	d, err := Parse(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected error for malformed line")
	}
	if d != nil {
		t.Errorf("expected no partial dataset, got %d samples", d.Len())
	}

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error %T is not *ParseError", err)
	}
	if pe.Line != 2 {
		t.Errorf("Line = %d, want 2", pe.Line)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scores.csv")
	content := "10,1,0,0,250,0,short,HD\n11,0,2,0,320.5,900,a much longer name,DT\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}
	if got := d.LongestName(); got != len("a much longer name") {
		t.Errorf("LongestName() = %d, want %d", got, len("a much longer name"))
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}
