package caption

import (
	"errors"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		lookup Lookup
		want   string
	}{
		{"text field", `{"text": "Apply now!"}`, Lookup{}, "Apply now!"},
		{"caption field", `{"caption": "Join us"}`, Lookup{}, "Join us"},
		{"text preferred over caption", `{"caption": "second", "text": "first"}`, Lookup{}, "first"},
		{"empty text falls through", `{"text": "", "caption": "fallback"}`, Lookup{}, "fallback"},
		{"no caption", `{"id": 1}`, Lookup{}, ""},
		{"non-string caption ignored", `{"caption": 42}`, Lookup{}, ""},
		{"whitespace is empty", `{"caption": "   "}`, Lookup{}, ""},
		{"nested not scanned by default", `{"node": {"caption": "deep"}}`, Lookup{}, ""},
		{"nested scanned", `{"node": {"caption": "deep"}}`, Lookup{Nested: true}, "deep"},
		{"nested document order", `{"z": {"caption": "first"}, "a": {"caption": "second"}}`, Lookup{Nested: true}, "first"},
		{"nested skips non-objects", `{"list": [1], "node": {"text": "ok"}}`, Lookup{Nested: true}, "ok"},
		{"top level wins over nested", `{"node": {"caption": "deep"}, "caption": "top"}`, Lookup{Nested: true}, "top"},
		{"custom fields", `{"body": "custom", "text": "default"}`, Lookup{Fields: []string{"body"}}, "custom"},
		{"utf8 bom", "\xef\xbb\xbf{\"text\": \"bom\"}", Lookup{}, "bom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract([]byte(tt.doc), tt.lookup)
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtract_UTF16(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte(`{"caption": "Registrieren Sie sich jetzt"}`))
	if err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}

	got, err := Extract(data, Lookup{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got != "Registrieren Sie sich jetzt" {
		t.Errorf("Extract() = %q", got)
	}
}

func TestExtract_Malformed(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		wantNotObj bool
	}{
		{"truncated", `{"text": "abc`, false},
		{"empty", ``, false},
		{"garbage", `not json`, false},
		{"array", `[{"text": "a"}]`, true},
		{"string", `"text"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract([]byte(tt.doc), Lookup{})
			if err == nil {
				t.Fatal("Expected error")
			}
			if errors.Is(err, ErrNotObject) != tt.wantNotObj {
				t.Errorf("errors.Is(ErrNotObject) = %v, want %v (err: %v)", !tt.wantNotObj, tt.wantNotObj, err)
			}
		})
	}
}
