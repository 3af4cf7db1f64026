package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FieldKind tags the concrete shape of an extracted value.
type FieldKind string

const (
	KindNull   FieldKind = "null"
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "boolean"
	KindObject FieldKind = "object"
	KindArray  FieldKind = "array"
)

// FieldValue is a tagged union over the result shapes the external service
// returns. Decoding is explicit per shape; unknown shapes are an error
// rather than something to probe around.
type FieldValue struct {
	Kind   FieldKind             `json:"kind"`
	Str    string                `json:"string,omitempty"`
	Num    float64               `json:"number,omitempty"`
	Bool   bool                  `json:"boolean,omitempty"`
	Object map[string]FieldValue `json:"object,omitempty"`
	Array  []FieldValue          `json:"array,omitempty"`
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty field value")
	}
	switch trimmed[0] {
	case 'n':
		*v = FieldValue{Kind: KindNull}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = FieldValue{Kind: KindString, Str: s}
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return err
		}
		*v = FieldValue{Kind: KindBool, Bool: b}
		return nil
	case '{':
		var obj map[string]FieldValue
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		*v = FieldValue{Kind: KindObject, Object: obj}
		return nil
	case '[':
		var arr []FieldValue
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return err
		}
		*v = FieldValue{Kind: KindArray, Array: arr}
		return nil
	default:
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return fmt.Errorf("unsupported field value %q: %w", trimmed, err)
		}
		*v = FieldValue{Kind: KindNumber, Num: n}
		return nil
	}
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull, "":
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindObject:
		return json.Marshal(v.Object)
	case KindArray:
		return json.Marshal(v.Array)
	default:
		return nil, fmt.Errorf("unknown field kind: %s", v.Kind)
	}
}
