package ocr

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// OutputRecord is the structured result of one pipeline run.
type OutputRecord struct {
	Text      string   `json:"text"`
	Languages []string `json:"languages"`
	// OrientationCorrected reports that correction was attempted, not that
	// a rotation was applied.
	OrientationCorrected bool `json:"orientation_corrected"`
}

// PackageResult trims the outer whitespace of text and records the
// language names in order. Inner whitespace is kept verbatim.
func PackageResult(text string, languages []Language, orientationCorrected bool) OutputRecord {
	names := make([]string, len(languages))
	for i, l := range languages {
		names[i] = l.Name
	}
	return OutputRecord{
		Text:                 strings.TrimSpace(text),
		Languages:            names,
		OrientationCorrected: orientationCorrected,
	}
}

// Encode writes the record as indented JSON. Non-ASCII text is written
// literally and HTML characters are not escaped.
func (r OutputRecord) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(r)
}

// JSON returns the Encode output without the trailing newline.
func (r OutputRecord) JSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Encode(&buf); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
