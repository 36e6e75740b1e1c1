package event

// Type identifies the type of domain event
type Type string

const (
	TypeLecturerCreated  Type = "lecturer.created"
	TypeClaimSubmitted   Type = "claim.submitted"
	TypeClaimReviewed    Type = "claim.reviewed"
	TypeDocumentStored   Type = "document.stored"
	TypeDocumentRejected Type = "document.rejected"
)

var allTypes = []Type{
	TypeLecturerCreated,
	TypeClaimSubmitted,
	TypeClaimReviewed,
	TypeDocumentStored,
	TypeDocumentRejected,
}

// Types returns every defined event type
func Types() []Type {
	return append([]Type(nil), allTypes...)
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeLecturerCreated,
		TypeClaimSubmitted,
		TypeClaimReviewed,
		TypeDocumentStored,
		TypeDocumentRejected:
		return true
	default:
		return false
	}
}
