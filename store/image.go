package store

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"

	"github.com/chazu/xenoscript/graph"
)

// imageMagic prefixes every image so foreign files are rejected early.
var imageMagic = []byte("XIMG\x01")

var imageEncMode cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: failed to create CBOR enc mode: %v", err))
	}
	imageEncMode = em
}

// EncodeImage serializes a graph as zstd-compressed canonical CBOR.
func EncodeImage(g *graph.Graph) ([]byte, error) {
	raw, err := imageEncMode.Marshal(g.Document())
	if err != nil {
		return nil, fmt.Errorf("store: encode image: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(imageMagic)
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("store: creating zstd encoder: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return nil, fmt.Errorf("store: compressing image: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("store: compressing image: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage reverses EncodeImage.
func DecodeImage(data []byte) (*graph.Graph, error) {
	if !bytes.HasPrefix(data, imageMagic) {
		return nil, fmt.Errorf("store: not a xeno image")
	}
	dec, err := zstd.NewReader(bytes.NewReader(data[len(imageMagic):]))
	if err != nil {
		return nil, fmt.Errorf("store: creating zstd decoder: %w", err)
	}
	defer dec.Close()
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("store: decompressing image: %w", err)
	}

	var doc graph.Document
	if err := cbor.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("store: unmarshal image: %w", err)
	}
	return graph.FromDocument(&doc)
}

// IsImage reports whether data starts with the image header.
func IsImage(data []byte) bool {
	return bytes.HasPrefix(data, imageMagic)
}

// Digest returns the hex BLAKE3-256 of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
