package webhook

import "encoding/json"

// EventType is a closed tag over the Clerk event types this service handles.
// Dispatching on the tag (instead of raw string comparison at each site) keeps
// unhandled types visible in one place.
type EventType int

const (
	EventOther EventType = iota
	EventUserCreated
	EventUserUpdated
	EventUserDeleted
)

func ParseEventType(s string) EventType {
	switch s {
	case "user.created":
		return EventUserCreated
	case "user.updated":
		return EventUserUpdated
	case "user.deleted":
		return EventUserDeleted
	default:
		return EventOther
	}
}

func (t EventType) String() string {
	switch t {
	case EventUserCreated:
		return "user.created"
	case EventUserUpdated:
		return "user.updated"
	case EventUserDeleted:
		return "user.deleted"
	default:
		return "other"
	}
}

// ClerkEvent is the envelope of a Clerk webhook payload. Data is kept raw
// until the event type is known; user.deleted events carry a reduced object.
type ClerkEvent struct {
	Object string          `json:"object"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
}

// ClerkUserData is the user object carried by user.created / user.updated.
type ClerkUserData struct {
	ID                    string              `json:"id"`
	Object                string              `json:"object"`
	ExternalID            *string             `json:"external_id"`
	PrimaryEmailAddressID *string             `json:"primary_email_address_id"`
	PrimaryPhoneNumberID  *string             `json:"primary_phone_number_id"`
	Username              *string             `json:"username"`
	FirstName             *string             `json:"first_name"`
	LastName              *string             `json:"last_name"`
	ImageURL              *string             `json:"image_url"`
	EmailAddresses        []ClerkEmailAddress `json:"email_addresses"`
	PhoneNumbers          []ClerkPhoneNumber  `json:"phone_numbers"`
	CreatedAt             int64               `json:"created_at"`
	UpdatedAt             int64               `json:"updated_at"`
	LastSignInAt          *int64              `json:"last_sign_in_at"`
}

type ClerkEmailAddress struct {
	ID           string            `json:"id"`
	EmailAddress string            `json:"email_address"`
	Verification ClerkVerification `json:"verification"`
}

type ClerkPhoneNumber struct {
	ID           string            `json:"id"`
	PhoneNumber  string            `json:"phone_number"`
	Verification ClerkVerification `json:"verification"`
}

type ClerkVerification struct {
	Status string `json:"status"`
}

// ClerkDeletedData is the reduced object carried by user.deleted.
type ClerkDeletedData struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
