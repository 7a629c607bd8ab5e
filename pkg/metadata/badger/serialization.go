package badger

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/dittofiles/pkg/metadata"
)

// Records are stored as JSON: human-readable when inspecting the database and
// tolerant to added fields.

func encodeFile(f *metadata.File) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode file %s: %w", f.ID, err)
	}
	return data, nil
}

func decodeFile(data []byte) (*metadata.File, error) {
	var f metadata.File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode file: %w", err)
	}
	return &f, nil
}
