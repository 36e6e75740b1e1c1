package entity

// Status labels for Claim. The label is a cached projection of the
// (coordinator, manager) decision pair and is never set independently.
const (
	StatusPending               = "Pending"
	StatusPendingManagerReview  = "Pending Manager Review"
	StatusApproved              = "Approved"
	StatusRejectedByCoordinator = "Rejected by Coordinator"
	StatusRejectedByManager     = "Rejected by Manager"
)

// Claim limits
const (
	MinHoursWorked = 1
	MaxHoursWorked = 500
	MinHourlyRate  = 1
	MaxHourlyRate  = 5000
	RateScale      = 2
	MaxNotesLength = 500
)

// Lecturer limits
const (
	MaxLecturerNameLength  = 100
	MaxLecturerEmailLength = 100
)

// Supporting document limits
const (
	MaxDocumentSize        = 5 * 1024 * 1024 // 5 MiB
	MaxFileNameLength      = 255
	MaxFileTypeLength      = 10
	ExtensionPDF           = ".pdf"
	ExtensionDOCX          = ".docx"
	ExtensionXLSX          = ".xlsx"
	ContentTypePDF         = "application/pdf"
	ContentTypeDOCX        = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeOctetStream = "application/octet-stream"
)
