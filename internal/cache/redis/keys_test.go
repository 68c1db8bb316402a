package redis

import "testing"

func TestKeyPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{prefix: "", key: "lock:reveal-tick", want: "lock:reveal-tick"},
		{prefix: "roundoracle", key: "lock:reveal-tick", want: "roundoracle:lock:reveal-tick"},
	}
	for _, tt := range tests {
		c := &Client{prefix: tt.prefix}
		if got := c.key(tt.key); got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.key, tt.prefix, got, tt.want)
		}
	}
}

func TestHasPattern(t *testing.T) {
	tests := map[string]bool{
		"round:*":         true,
		"round:finalized": false,
		"round:[ab]":      true,
		"bet?":            true,
	}
	for ch, want := range tests {
		if got := hasPattern(ch); got != want {
			t.Errorf("hasPattern(%q) = %v, want %v", ch, got, want)
		}
	}
}

func TestStreamPayload(t *testing.T) {
	if b, ok := streamPayload(map[string]interface{}{"payload": "x"}); !ok || string(b) != "x" {
		t.Errorf("string payload: %q %v", b, ok)
	}
	if b, ok := streamPayload(map[string]interface{}{"payload": []byte("y")}); !ok || string(b) != "y" {
		t.Errorf("bytes payload: %q %v", b, ok)
	}
	if _, ok := streamPayload(map[string]interface{}{"channel": "round:resolved"}); ok {
		t.Error("missing payload reported as present")
	}
}

func TestOutcomeKey(t *testing.T) {
	oc := &OutcomeCache{c: &Client{prefix: "ro"}}
	if got := oc.outcomesKey("r-1"); got != "ro:round:r-1:outcomes" {
		t.Errorf("outcomesKey = %q", got)
	}
}

func TestGenerationKey(t *testing.T) {
	oc := &OutcomeCache{c: &Client{prefix: "ro"}}
	if got := oc.generationKey("r-1"); got != "ro:round:r-1:outcomes:gen" {
		t.Errorf("generationKey = %q", got)
	}
}

func TestParseGeneration(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: "7", want: 7},
		{raw: "x", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseGeneration(tt.raw)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseGeneration(%q) = %d, %v", tt.raw, got, err)
		}
	}
}
