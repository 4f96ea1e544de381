// Package codec selects the serialization of persisted hash configurations,
// storage snapshots and sqlite vector columns.
//
// Frames record the codec name next to the payload, so blobs written with
// one codec stay readable after Default changes.
package codec

import (
	stdjson "encoding/json"

	gojson "github.com/goccy/go-json"
)

// Names of the built-in codecs as recorded in frames.
const (
	NameJSON   = "json"
	NameGoJSON = "go-json"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used for newly written frames.
var Default Codec = GoJSON{}

// JSON is the encoding/json codec. Its output is readable by any JSON tool.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)      { return stdjson.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return stdjson.Unmarshal(data, v) }
func (JSON) Name() string                       { return NameJSON }

// GoJSON produces the same wire format as JSON using
// github.com/goccy/go-json.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error)      { return gojson.Marshal(v) }
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }
func (GoJSON) Name() string                       { return NameGoJSON }

// ByName returns the built-in codec recorded under name.
func ByName(name string) (Codec, bool) {
	switch name {
	case NameJSON:
		return JSON{}, true
	case NameGoJSON:
		return GoJSON{}, true
	}
	return nil, false
}

// Names lists the built-in codec names.
func Names() []string { return []string{NameJSON, NameGoJSON} }
