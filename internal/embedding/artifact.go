package embedding

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Binary artifact layout, little-endian:
//
//	magic "RJEM" | version uint32 | dimensions uint32 | count uint32
//	count × (id int64 | dimensions × float32)
const (
	artifactMagic   = "RJEM"
	artifactVersion = 1
	headerSize      = 16
)

// Format is the on-disk encoding of an embedding artifact.
type Format string

const (
	// FormatBinary is the compact little-endian encoding (default).
	FormatBinary Format = "binary"
	// FormatJSON is an array of {"id": int, "vector": [float]} objects.
	FormatJSON Format = "json"
)

// FormatForPath picks the artifact format from the file extension.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatBinary
}

type jsonEntry struct {
	ID     ID        `json:"id"`
	Vector []float32 `json:"vector"`
}

// Load reads the artifact at path exactly once and builds a Store.
// Every failure is a *LoadError matching ErrLoad.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	ids, vectors, err := Decode(data, FormatForPath(path))
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	store, err := New(ids, vectors)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	return store, nil
}

// Decode parses artifact bytes in the given format into parallel ids and vectors.
func Decode(data []byte, format Format) ([]ID, [][]float32, error) {
	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatBinary, "":
		return decodeBinary(data)
	default:
		return nil, nil, fmt.Errorf("unknown artifact format: %s", format)
	}
}

func decodeJSON(data []byte) ([]ID, [][]float32, error) {
	var entries []jsonEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil, fmt.Errorf("decode json artifact: %w", err)
	}
	ids := make([]ID, len(entries))
	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		vectors[i] = e.Vector
	}
	return ids, vectors, nil
}

func decodeBinary(data []byte) ([]ID, [][]float32, error) {
	if len(data) < headerSize {
		return nil, nil, fmt.Errorf("artifact too short: %d bytes", len(data))
	}
	if string(data[:4]) != artifactMagic {
		return nil, nil, fmt.Errorf("bad magic %q", data[:4])
	}
	r := bytes.NewReader(data[4:])
	var version, dim, n uint32
	for _, v := range []*uint32{&version, &dim, &n} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, nil, fmt.Errorf("read header: %w", err)
		}
	}
	if version != artifactVersion {
		return nil, nil, fmt.Errorf("unsupported artifact version %d", version)
	}
	if dim == 0 {
		return nil, nil, errors.New("artifact declares zero dimensions")
	}
	rowSize := 8 + 4*uint64(dim)
	if want := headerSize + uint64(n)*rowSize; uint64(len(data)) != want {
		return nil, nil, fmt.Errorf("artifact size mismatch: got %d bytes, header implies %d", len(data), want)
	}
	ids := make([]ID, n)
	vectors := make([][]float32, n)
	buf := make([]byte, 4*dim)
	for i := uint32(0); i < n; i++ {
		var id int64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, nil, fmt.Errorf("read id %d: %w", i, err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		ids[i] = ID(id)
		vectors[i] = bytesToFloat32Slice(buf)
	}
	return ids, vectors, nil
}

// Write persists ids and vectors to path in the format implied by its extension.
// Parent directories are created if needed. Vectors are written as given.
func Write(path string, ids []ID, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	data, err := Encode(ids, vectors, FormatForPath(path))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// Encode serializes ids and vectors in the given format.
func Encode(ids []ID, vectors [][]float32, format Format) ([]byte, error) {
	if format == FormatJSON {
		entries := make([]jsonEntry, len(ids))
		for i := range ids {
			entries[i] = jsonEntry{ID: ids[i], Vector: vectors[i]}
		}
		return json.Marshal(entries)
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	var buf bytes.Buffer
	buf.WriteString(artifactMagic)
	for _, v := range []uint32{artifactVersion, uint32(dim), uint32(len(ids))} {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	for i, id := range ids {
		if len(vectors[i]) != dim {
			return nil, fmt.Errorf("vector dimension mismatch for id %d: got %d, expected %d", id, len(vectors[i]), dim)
		}
		_ = binary.Write(&buf, binary.LittleEndian, int64(id))
		buf.Write(float32SliceToBytes(vectors[i]))
	}
	return buf.Bytes(), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
