package snapshot

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ============================================================
// Codecs
// ============================================================

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: cbor enc mode: %v", err))
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: cbor dec mode: %v", err))
	}
}

// EncodeJSON пишет снимок в w с отступами.
func EncodeJSON(w io.Writer, f *Flat) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode json snapshot: %w", err)
	}
	return nil
}

func DecodeJSON(r io.Reader) (*Flat, error) {
	var f Flat
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode json snapshot: %w", err)
	}
	return &f, nil
}

// MarshalCBOR кодирует произвольное значение в канонический CBOR.
func MarshalCBOR(v any) ([]byte, error) {
	data, err := cborEnc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode cbor: %w", err)
	}
	return data, nil
}

func UnmarshalCBOR(data []byte, v any) error {
	if err := cborDec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode cbor: %w", err)
	}
	return nil
}

func EncodeCBOR(f *Flat) ([]byte, error) {
	return MarshalCBOR(f)
}

func DecodeCBOR(data []byte) (*Flat, error) {
	var f Flat
	if err := UnmarshalCBOR(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
