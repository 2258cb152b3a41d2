package invoice

import "errors"

var (
	// ErrDocumentNotFound is returned when the document path does not exist
	ErrDocumentNotFound = errors.New("document not found")

	// ErrUnsupportedDocument is returned for file types the renderer cannot read
	ErrUnsupportedDocument = errors.New("unsupported document type")

	// ErrNoPages is returned when no page of a PDF could be rendered
	ErrNoPages = errors.New("no pages rendered from document")

	// ErrMalformedPayload is returned when the extraction payload is not valid JSON
	// or describes an invalid invoice
	ErrMalformedPayload = errors.New("malformed extraction payload")
)
