package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperjump/ruiji/internal/models"
)

// ParseItems decodes a catalog file. Three shapes are accepted: a single item
// object, an array of items (or of {"node": item} wrappers), and a search
// response object {"data": [{"node": item}, ...]}.
func ParseItems(data []byte) ([]*models.Item, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty catalog file")
	}
	switch data[0] {
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode item array: %w", err)
		}
		return parseEntries(entries)
	case '{':
		var envelope struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("decode catalog object: %w", err)
		}
		if envelope.Data != nil {
			return parseEntries(envelope.Data)
		}
		item, err := parseEntry(data)
		if err != nil {
			return nil, err
		}
		return []*models.Item{item}, nil
	}
	return nil, fmt.Errorf("unexpected catalog file content starting with %q", data[0])
}

func parseEntries(entries []json.RawMessage) ([]*models.Item, error) {
	items := make([]*models.Item, 0, len(entries))
	for i, e := range entries {
		item, err := parseEntry(e)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// parseEntry unwraps {"node": item} when present.
func parseEntry(raw json.RawMessage) (*models.Item, error) {
	var wrapper struct {
		Node json.RawMessage `json:"node"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Node) > 0 {
		raw = wrapper.Node
	}
	return models.ParseItem(raw)
}
