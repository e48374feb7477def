package codec

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "json", false},
		{"json", "json", false},
		{"PROTO", "proto", false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		c, err := Lookup(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Lookup(%q): expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("Lookup(%q): %v", tt.name, err)
			continue
		}
		if c.Name() != tt.want {
			t.Errorf("Lookup(%q).Name() = %q, want %q", tt.name, c.Name(), tt.want)
		}
	}
}

func TestRoundTripMarkup(t *testing.T) {
	values := map[string]string{
		"title":   "<h1>Passing the <em>Fire</em></h1>",
		"intro":   "<ul><li>one</li><li>two</li></ul>",
		"empty":   "",
		"unicode": "ünïcödé ✓",
	}
	for _, name := range Names() {
		c, _ := Lookup(name)
		data, err := c.Encode(values)
		if err != nil {
			t.Fatalf("%s encode: %v", name, err)
		}
		got, err := c.Decode(data)
		if err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if len(got) != len(values) {
			t.Fatalf("%s: got %d keys, want %d", name, len(got), len(values))
		}
		for k, v := range values {
			if got[k] != v {
				t.Errorf("%s: key %q = %q, want %q", name, k, got[k], v)
			}
		}
	}
}

func TestJSONEncodeNil(t *testing.T) {
	data, err := JSON{}.Encode(nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{}" {
		t.Fatalf("Encode(nil) = %s, want {}", data)
	}
}

func TestJSONDecodeMalformed(t *testing.T) {
	for _, in := range []string{"not json", "null", `["a"]`, `{"a": 1}`} {
		if _, err := (JSON{}).Decode([]byte(in)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Decode(%q): got %v, want ErrMalformed", in, err)
		}
	}
}

func TestProtoDecodeMalformed(t *testing.T) {
	if _, err := (Proto{}).Decode([]byte{0xff, 0xff, 0xff}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestProtoRejectsNonString(t *testing.T) {
	st := &structpb.Struct{Fields: map[string]*structpb.Value{
		"title": structpb.NewStringValue("ok"),
		"count": structpb.NewNumberValue(3),
	}}
	data, err := proto.Marshal(st)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := (Proto{}).Decode(data); !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}
