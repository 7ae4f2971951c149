package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalIssuedLink serializes an IssuedLink to JSON bytes.
func MarshalIssuedLink(il *IssuedLink) ([]byte, error) {
	if il == nil {
		return nil, fmt.Errorf("cannot marshal nil IssuedLink")
	}

	data, err := json.Marshal(il)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal IssuedLink to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalIssuedLink deserializes an IssuedLink from JSON bytes.
func UnmarshalIssuedLink(data []byte) (*IssuedLink, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var il IssuedLink
	if err := json.Unmarshal(data, &il); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to IssuedLink: %w", err)
	}

	return &il, nil
}
