package registration

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// Team-level document fields. Field names double as object names under
// the blob store's pending/{teamID}/ prefix.
const (
	FieldPaymentReceipt = "payment_receipt"
	FieldPastorLetter   = "pastor_letter"
	FieldGroupPhoto     = "group_photo"
)

// Per-player document fields.
const (
	FieldAadharCard       = "aadhar_card"
	FieldSubscriptionForm = "subscription_form"
)

const (
	MinPlayers = 11
	MaxPlayers = 15
)

type Contact struct {
	Name  string
	Phone string
	Email string
}

type Team struct {
	InternalID        string
	PublicID          string
	Name              string
	ChurchName        string
	Captain           Contact
	ViceCaptain       Contact
	PaymentReceiptURL string
	PastorLetterURL   string
	GroupPhotoURL     string
	Status            Status
	CreatedAt         time.Time
}

type Player struct {
	InternalID          string
	PublicID            string
	TeamInternalID      string
	Name                string
	Role                string
	AadharFileURL       string
	SubscriptionFileURL string
}

// FileURLs carries the three team-level document URLs the approval flow
// rewrites; empty strings mean the document was never provided.
type FileURLs struct {
	PaymentReceipt string
	PastorLetter   string
	GroupPhoto     string
}

func (u FileURLs) Fields() map[string]string {
	return map[string]string{
		FieldPaymentReceipt: u.PaymentReceipt,
		FieldPastorLetter:   u.PastorLetter,
		FieldGroupPhoto:     u.GroupPhoto,
	}
}

func (t Team) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("team name is required")
	}
	if strings.TrimSpace(t.ChurchName) == "" {
		return fmt.Errorf("church name is required")
	}
	if strings.TrimSpace(t.Captain.Name) == "" {
		return fmt.Errorf("captain name is required")
	}
	if strings.TrimSpace(t.ViceCaptain.Name) == "" {
		return fmt.Errorf("vice-captain name is required")
	}
	return nil
}

func ValidatePlayerCount(count int) error {
	if count < MinPlayers || count > MaxPlayers {
		return fmt.Errorf("player count must be between %d and %d, got %d", MinPlayers, MaxPlayers, count)
	}
	return nil
}

// PlayerPublicID derives the public player identifier from the team's
// public id and the player's 1-based slot, e.g. ICCT-007-P03.
func PlayerPublicID(teamPublicID string, slot int) string {
	return fmt.Sprintf("%s-P%02d", teamPublicID, slot)
}
