package session

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"time"
)

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(Data{})
	gob.Register(time.Time{})

	// composite shapes commonly stored in a session, such as flash
	// messages and counters
	gob.Register(map[string]string{})
	gob.Register(map[string]bool{})
	gob.Register(map[string]int{})
	gob.Register(map[string]int32{})
	gob.Register(map[string]int64{})
	gob.Register(map[string]uint{})
	gob.Register(map[string]uint64{})
	gob.Register(map[string]float32{})
	gob.Register(map[string]float64{})
	gob.Register(map[string][]byte{})
	gob.Register(map[string][]string{})
	gob.Register(map[string][]any{})
	gob.Register(map[string]map[string]any{})
	gob.Register([]map[string]any{})
	gob.Register([]map[string]string{})
}

// Codec turns a session map into the text stored in the data column.
type Codec interface {
	Encode(data Data) (string, error)
	Decode(raw string) (Data, error)
}

// GobCodec stores base64 encoded gob. It keeps Go types intact, so ints
// come back as ints. Custom types nested in the map must be registered
// with gob.Register by the caller.
type GobCodec struct{}

func (GobCodec) Encode(data Data) (string, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(map[string]any(data)); err != nil {
		return "", fmt.Errorf("gob encode: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (GobCodec) Decode(raw string) (Data, error) {
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	var m map[string]any
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&m); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return Data(m), nil
}

// JSONCodec stores plain JSON. Numbers are decoded as float64.
type JSONCodec struct{}

func (JSONCodec) Encode(data Data) (string, error) {
	b, err := json.Marshal(map[string]any(data))
	if err != nil {
		return "", fmt.Errorf("json encode: %w", err)
	}
	return string(b), nil
}

func (JSONCodec) Decode(raw string) (Data, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return Data(m), nil
}
