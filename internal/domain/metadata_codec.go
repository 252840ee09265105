package domain

import (
	"encoding/json"
	"fmt"
)

// typedScalar keeps the Go kind of a metadata value through JSON,
// which would otherwise turn every number into float64.
type typedScalar struct {
	S *string  `json:"s,omitempty"`
	I *int64   `json:"i,omitempty"`
	F *float64 `json:"f,omitempty"`
	B *bool    `json:"b,omitempty"`
}

// MarshalMetadata encodes metadata for persistent backends.
func MarshalMetadata(md Metadata) ([]byte, error) {
	typed := make(map[string]typedScalar, len(md))
	for k, v := range md {
		nv, ok := normalizeScalar(v)
		if !ok {
			return nil, fmt.Errorf("%w: metadata value for %q has non-scalar type %T", ErrValidation, k, v)
		}
		var ts typedScalar
		switch x := nv.(type) {
		case string:
			ts.S = &x
		case int64:
			ts.I = &x
		case float64:
			ts.F = &x
		case bool:
			ts.B = &x
		}
		typed[k] = ts
	}
	return json.Marshal(typed)
}

// UnmarshalMetadata decodes what MarshalMetadata produced.
func UnmarshalMetadata(data []byte) (Metadata, error) {
	var typed map[string]typedScalar
	if err := json.Unmarshal(data, &typed); err != nil {
		return nil, err
	}
	if typed == nil {
		return nil, fmt.Errorf("metadata is null")
	}
	md := make(Metadata, len(typed))
	for k, ts := range typed {
		switch {
		case ts.S != nil:
			md[k] = *ts.S
		case ts.I != nil:
			md[k] = *ts.I
		case ts.F != nil:
			md[k] = *ts.F
		case ts.B != nil:
			md[k] = *ts.B
		default:
			return nil, fmt.Errorf("metadata value for %q has no type tag", k)
		}
	}
	return md, nil
}
