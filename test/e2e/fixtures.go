package e2e

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/ruiji/internal/models"
)

// FileShape is one of the catalog file layouts the importer accepts.
type FileShape string

const (
	// ShapeArray is a plain JSON array of items.
	ShapeArray FileShape = "array"
	// ShapeNodes is an array of {"node": item} wrappers.
	ShapeNodes FileShape = "nodes"
	// ShapeData is a catalog search response, {"data": [{"node": item}]}.
	ShapeData FileShape = "data"
	// ShapeObject is a single item; only valid for one item.
	ShapeObject FileShape = "object"
)

// Shapes lists every multi-item layout, for rotating through in tests.
var Shapes = []FileShape{ShapeArray, ShapeNodes, ShapeData}

type node struct {
	Node models.Item `json:"node"`
}

// EncodeCatalog renders items in the given layout.
func EncodeCatalog(items []models.Item, shape FileShape) ([]byte, error) {
	switch shape {
	case ShapeArray:
		return json.MarshalIndent(items, "", "  ")
	case ShapeNodes, ShapeData:
		nodes := make([]node, len(items))
		for i, it := range items {
			nodes[i] = node{Node: it}
		}
		if shape == ShapeNodes {
			return json.MarshalIndent(nodes, "", "  ")
		}
		return json.MarshalIndent(map[string]interface{}{"data": nodes}, "", "  ")
	case ShapeObject:
		if len(items) != 1 {
			return nil, fmt.Errorf("object shape holds one item, got %d", len(items))
		}
		return json.MarshalIndent(items[0], "", "  ")
	}
	return nil, fmt.Errorf("unknown shape %q", shape)
}

// WriteCatalogFile writes items to path in the given layout, creating parent
// directories as needed.
func WriteCatalogFile(path string, items []models.Item, shape FileShape) error {
	data, err := EncodeCatalog(items, shape)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
