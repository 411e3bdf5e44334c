package portalreport

import (
	"encoding/json"
	"io"
)

// WriteJSON renders the report as indented JSON with stable keys, for
// piping into other tooling.
func WriteJSON(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
