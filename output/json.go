package output

import (
	"io"

	"javaidx/scanner"
	"javaidx/systeminfo"
)

// Report is the JSON document written by --format json.
type Report struct {
	SchemaVersion string                 `json:"schema_version"`
	SystemInfo    *systeminfo.SystemInfo `json:"system_info,omitempty"`
	Records       []*scanner.Entry       `json:"records"`
	Failures      []scanner.Failure      `json:"failures"`
	Metrics       *Metrics               `json:"metrics,omitempty"`
}

// WriteJSON writes r as one indented document. Nil lists are written as
// empty arrays.
func WriteJSON(w io.Writer, r *Report) error {
	out := *r
	if out.Records == nil {
		out.Records = []*scanner.Entry{}
	}
	if out.Failures == nil {
		out.Failures = []scanner.Failure{}
	}
	return encodeJSON(w, &out)
}
