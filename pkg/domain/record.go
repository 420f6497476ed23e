package domain

import (
	"encoding/json"
	"fmt"
)

// Record is the serialized form of a document, as kept by document stores.
type Record struct {
	Type DocType         `json:"type"`
	Body json.RawMessage `json:"body"`
}

// NewRecord serializes doc.
func NewRecord(doc Document) (Record, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal %s document: %w", doc.DocType(), err)
	}
	return Record{Type: doc.DocType(), Body: body}, nil
}

// Decode restores the concrete document held by the record.
func (r Record) Decode() (Document, error) {
	var (
		doc Document
		err error
	)
	switch r.Type {
	case DocStart:
		var d RunStart
		err = json.Unmarshal(r.Body, &d)
		doc = d
	case DocEvent:
		var d Event
		err = json.Unmarshal(r.Body, &d)
		doc = d
	case DocStop:
		var d RunStop
		err = json.Unmarshal(r.Body, &d)
		doc = d
	default:
		return nil, fmt.Errorf("unknown document type %q", r.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s document: %w", r.Type, err)
	}
	return doc, nil
}
