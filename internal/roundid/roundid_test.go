package roundid

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	id := Generate()

	if len(id) != Length {
		t.Errorf("expected %d characters, got %d", Length, len(id))
	}
	if err := Validate(id); err != nil {
		t.Errorf("generated ID failed validation: %v", err)
	}
}

func TestGenerateUnique(t *testing.T) {
	ids := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id := Generate()
		if ids[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		ids[id] = true
	}
}

func TestGenerateTimeSorted(t *testing.T) {
	var ids []string

	for i := 0; i < 10; i++ {
		ids = append(ids, Generate())
		time.Sleep(time.Millisecond)
	}

	for i := 1; i < len(ids); i++ {
		if strings.Compare(ids[i-1], ids[i]) >= 0 {
			t.Errorf("IDs not sorted: %s >= %s", ids[i-1], ids[i])
		}
	}
}

func TestGenerateWithReader(t *testing.T) {
	g := Generator{Rand: bytes.NewReader(bytes.Repeat([]byte{0xab}, 64))}

	id, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := Validate(id); err != nil {
		t.Fatalf("generated ID failed validation: %v", err)
	}

	empty := Generator{Rand: bytes.NewReader(nil)}
	if _, err := empty.Generate(); err == nil {
		t.Error("expected error from exhausted reader")
	}
}

func TestTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := Generate()
	after := time.Now().Add(time.Second)

	ts, err := Time(id)
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp %v outside [%v, %v]", ts, before, after)
	}
}

func TestValidate(t *testing.T) {
	valid := Generate()

	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "valid ID", id: valid},
		{name: "too short", id: valid[:21], wantErr: true},
		{name: "too long", id: valid + "ab", wantErr: true},
		{name: "invalid character", id: "i" + valid[1:], wantErr: true},
		{name: "uppercase", id: strings.ToUpper(valid), wantErr: strings.ToUpper(valid) != valid},
		{name: "not version 7", id: strings.Repeat("0", Length), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}
