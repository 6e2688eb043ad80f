package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/homebatt/homebatt/core/model"
)

// FileSource reads a price horizon from a JSON file holding the same
// point format the HTTP feed serves. Used by the plan command.
type FileSource struct {
	Path string
}

// Fetch loads and converts the file contents.
func (f FileSource) Fetch(context.Context) ([]model.PriceInterval, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read prices file: %w", err)
	}
	var points []pricePoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("decode prices file: %w", err)
	}
	return toIntervals(points), nil
}
