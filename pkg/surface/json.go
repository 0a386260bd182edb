package surface

import (
	"encoding/json"
	"io"

	"github.com/signalscope/signalscope/pkg/scoring"
)

// JSONRenderer marshals CompositeScoreRecord to indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(w io.Writer, rec *scoring.CompositeScoreRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
