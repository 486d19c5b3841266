package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/tendant/simple-content/pkg/simplecontent"
)

// DerivedWriter provides write access for derived content via simple-content service
type DerivedWriter struct {
	service simplecontent.Service
}

// NewDerivedWriter creates a new derived content writer
func NewDerivedWriter(service simplecontent.Service) *DerivedWriter {
	return &DerivedWriter{
		service: service,
	}
}

// HasDerived checks if a derived output already exists for the given type/version
func (dw *DerivedWriter) HasDerived(ctx context.Context, contentID string, derivedType string, derivedVersion int) (bool, error) {
	// Parse content ID
	parentID, err := uuid.Parse(contentID)
	if err != nil {
		return false, fmt.Errorf("invalid content ID: %w", err)
	}

	// List derived content for parent
	derived, err := dw.service.ListDerivedContent(ctx,
		simplecontent.WithParentID(parentID),
		simplecontent.WithDerivationType(derivedType),
	)
	if err != nil {
		return false, fmt.Errorf("failed to list derived content: %w", err)
	}

	// simple-content stores the version in the variant, e.g. "ocr_text_v1"
	variant := VariantName(derivedType, derivedVersion)
	for _, d := range derived {
		if d.DerivationType == derivedType && d.Variant == variant {
			return true, nil
		}
	}

	return false, nil
}

// PutDerived creates or upserts a derived output and returns its derived content ID
func (dw *DerivedWriter) PutDerived(ctx context.Context, contentID string, derivedType string, derivedVersion int, r io.Reader, meta map[string]string) (string, error) {
	// Parse parent content ID
	parentID, err := uuid.Parse(contentID)
	if err != nil {
		return "", fmt.Errorf("invalid content ID: %w", err)
	}

	variant := VariantName(derivedType, derivedVersion)
	fileName := derivedFileName(derivedType, meta)

	// Upload derived content using simple-content
	derivedContent, err := dw.service.UploadDerivedContent(ctx, simplecontent.UploadDerivedContentRequest{
		ParentID:       parentID,
		DerivationType: derivedType,
		Variant:        variant,
		Reader:         r,
		FileName:       fileName,
		Tags:           []string{derivedType, variant},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload derived content: %w", err)
	}

	return derivedContent.ID.String(), nil
}
