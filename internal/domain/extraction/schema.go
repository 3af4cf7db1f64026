package extraction

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// FieldSpec describes one field the analyzer should extract.
type FieldSpec struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Schema is the extraction configuration an analyzer is created from.
type Schema struct {
	Name   string               `json:"name,omitempty"`
	Fields map[string]FieldSpec `json:"fields"`
}

// Digest returns a stable content hash of the schema. Field order does not
// matter; two schemas with the same fields digest identically.
func (s Schema) Digest() string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(s.Name)
	for _, name := range names {
		spec := s.Fields[name]
		b.WriteString("|")
		b.WriteString(name)
		b.WriteString(":")
		b.WriteString(spec.Type)
		b.WriteString(":")
		b.WriteString(spec.Description)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Valid reports whether the schema has at least one field with a type.
func (s Schema) Valid() bool {
	if len(s.Fields) == 0 {
		return false
	}
	for _, spec := range s.Fields {
		if spec.Type == "" {
			return false
		}
	}
	return true
}

// MarshalCanonical serializes the schema for the create-analyzer call.
func (s Schema) MarshalCanonical() ([]byte, error) {
	return json.Marshal(s)
}
