package transport

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes envelopes for one wire format.
type Codec interface {
	// Name is the value of the codec query parameter that selects it.
	Name() string
	// FrameType is the websocket message type frames are sent as.
	FrameType() int
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec sends text frames. It is the default.
type JSONCodec struct{}

// Name implements Codec.
func (JSONCodec) Name() string { return "json" }

// FrameType implements Codec.
func (JSONCodec) FrameType() int { return websocket.TextMessage }

// Marshal implements Codec.
func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements Codec.
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// MsgpackCodec sends binary frames. Field names come from the json struct
// tags so both encodings carry the same keys and the same omissions.
type MsgpackCodec struct{}

// Name implements Codec.
func (MsgpackCodec) Name() string { return "msgpack" }

// FrameType implements Codec.
func (MsgpackCodec) FrameType() int { return websocket.BinaryMessage }

// Marshal implements Codec.
func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal implements Codec.
func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// codecs lists the selectable codecs; the first is the default.
var codecs = []Codec{JSONCodec{}, MsgpackCodec{}}

// CodecByName returns the codec selected by name. The empty name selects
// JSON.
func CodecByName(name string) (Codec, error) {
	if name == "" {
		return codecs[0], nil
	}
	for _, c := range codecs {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}
