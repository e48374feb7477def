// Package codec serializes the content mapping into the single blob kept in
// the persistence slot. The layout carries no version field: changing codec
// for an existing slot makes the old blob unreadable.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrMalformed wraps every decode failure.
var ErrMalformed = errors.New("codec: malformed content blob")

// Codec converts a content mapping to and from bytes.
type Codec interface {
	Name() string
	Encode(values map[string]string) ([]byte, error)
	Decode(data []byte) (map[string]string, error)
}

// Names lists the registered codecs in a stable order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var registry = map[string]Codec{
	"json":  JSON{},
	"proto": Proto{},
}

// Lookup returns the codec registered under name. The empty name selects JSON.
func Lookup(name string) (Codec, error) {
	if name == "" {
		return JSON{}, nil
	}
	c, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
	return c, nil
}

// JSON encodes the mapping as a string-keyed JSON object.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Encode(values map[string]string) ([]byte, error) {
	if values == nil {
		values = map[string]string{}
	}
	return json.Marshal(values)
}

func (JSON) Decode(data []byte) (map[string]string, error) {
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	// "null" decodes without error into a nil map.
	if out == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	return out, nil
}

// Proto encodes the mapping as a binary google.protobuf.Struct whose
// fields are all string values.
type Proto struct{}

func (Proto) Name() string { return "proto" }

func (Proto) Encode(values map[string]string) ([]byte, error) {
	fields := make(map[string]*structpb.Value, len(values))
	for k, v := range values {
		fields[k] = structpb.NewStringValue(v)
	}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(&structpb.Struct{Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("marshal struct: %w", err)
	}
	return data, nil
}

func (Proto) Decode(data []byte) (map[string]string, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out := make(map[string]string, len(st.GetFields()))
	for k, v := range st.GetFields() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%w: field %q is not a string", ErrMalformed, k)
		}
		out[k] = sv.StringValue
	}
	return out, nil
}
