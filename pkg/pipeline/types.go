package pipeline

// ProcessRequest represents a request to process content
type ProcessRequest struct {
	ContentID   string            `json:"content_id"`
	ObjectKey   string            `json:"object_key"`
	ContentHash *string           `json:"content_hash,omitempty"`
	Job         string            `json:"job"` // ocr
	Versions    map[string]int    `json:"versions"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ProcessResponse represents the response from triggering processing
type ProcessResponse struct {
	RunID           string `json:"run_id"`
	DedupeSeenCount int    `json:"dedupe_seen_count"`
}

// JobType constants
const (
	JobOCR = "ocr"
)

// DerivedType constants (match simple-content conventions)
const (
	DerivedTypeOCRText = "ocr_text"
)

// Metadata keys understood by the OCR workflow
const (
	// MetaLanguages overrides the language pair, e.g. "hin:Hindi,eng:English"
	MetaLanguages = "languages"
	MetaMimeType  = "mime"
)

// NewOCRRequest builds a request for version 1 of the OCR text derivative
func NewOCRRequest(contentID string) ProcessRequest {
	return ProcessRequest{
		ContentID: contentID,
		Job:       JobOCR,
		Versions: map[string]int{
			DerivedTypeOCRText: 1,
		},
	}
}
