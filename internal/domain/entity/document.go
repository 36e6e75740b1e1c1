package entity

import "time"

// SupportingDocument is the metadata record for an uploaded claim attachment.
// StoredFileName is internal and must not be shown to users.
type SupportingDocument struct {
	ID               int64     `json:"id"`
	ClaimID          int64     `json:"claim_id"`
	OriginalFileName string    `json:"original_file_name"`
	StoredFileName   string    `json:"-"`
	FileSize         int64     `json:"file_size"`
	FileType         string    `json:"file_type"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// DocumentFile is document content prepared for transport.
type DocumentFile struct {
	Content     []byte
	FileName    string
	ContentType string
}
