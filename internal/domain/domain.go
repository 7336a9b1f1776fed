// Package domain holds the request and result shapes shared by the HTTP
// layer and the extraction pipelines.
package domain

import "github.com/telansky/multigpt/internal/filekind"

// Upload carries one user-submitted file through an extraction pipeline.
// Data is the full file body; pipelines stage it to disk themselves when a
// subprocess needs a path.
type Upload struct {
	Name string
	Data []byte
}

// AskRequest is the normalized input of the ask operation. Empty strings
// mean "absent": normalization happens before this struct is built, so
// services never see placeholder values.
type AskRequest struct {
	Query  string
	Prompt string
	Model  string
	Upload *Upload
}

// HasUpload reports whether the request carries a file with content.
func (r AskRequest) HasUpload() bool {
	return r.Upload != nil && len(r.Upload.Data) > 0
}

// AskResult is the outcome of one ask operation. Category is empty for
// text-only requests.
type AskResult struct {
	Answer   string
	Model    string
	Category filekind.Category
}
