package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// JSONLSink appends one JSON object per line, the format most log tooling
// ingests without configuration.
type JSONLSink struct {
	file *os.File
	enc  *json.Encoder
}

func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}
	return &JSONLSink{file: f, enc: json.NewEncoder(f)}, nil
}

func (s *JSONLSink) Append(_ context.Context, event Event) error {
	if err := s.enc.Encode(event); err != nil {
		return fmt.Errorf("encode journal event: %w", err)
	}
	return nil
}

func (s *JSONLSink) Close() error {
	return s.file.Close()
}
