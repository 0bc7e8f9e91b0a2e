package postgres

import (
	"database/sql"
	"time"

	"github.com/icctweb/team-registration/internal/domain/registration"
)

type teamTableModel struct {
	InternalID        string         `db:"internal_id"`
	PublicID          string         `db:"public_id"`
	TeamName          string         `db:"team_name"`
	ChurchName        string         `db:"church_name"`
	CaptainName       string         `db:"captain_name"`
	CaptainPhone      string         `db:"captain_phone"`
	CaptainEmail      string         `db:"captain_email"`
	ViceCaptainName   string         `db:"vice_captain_name"`
	ViceCaptainPhone  string         `db:"vice_captain_phone"`
	ViceCaptainEmail  string         `db:"vice_captain_email"`
	PaymentReceiptURL sql.NullString `db:"payment_receipt_url"`
	PastorLetterURL   sql.NullString `db:"pastor_letter_url"`
	GroupPhotoURL     sql.NullString `db:"group_photo_url"`
	Status            string         `db:"registration_status"`
	CreatedAt         time.Time      `db:"created_at"`
}

type playerTableModel struct {
	InternalID          string         `db:"internal_id"`
	PublicID            string         `db:"public_id"`
	TeamInternalID      string         `db:"team_internal_id"`
	Name                string         `db:"name"`
	Role                string         `db:"role"`
	AadharFileURL       sql.NullString `db:"aadhar_file_url"`
	SubscriptionFileURL sql.NullString `db:"subscription_file_url"`
}

func teamFromRow(row teamTableModel) registration.Team {
	return registration.Team{
		InternalID: row.InternalID,
		PublicID:   row.PublicID,
		Name:       row.TeamName,
		ChurchName: row.ChurchName,
		Captain: registration.Contact{
			Name:  row.CaptainName,
			Phone: row.CaptainPhone,
			Email: row.CaptainEmail,
		},
		ViceCaptain: registration.Contact{
			Name:  row.ViceCaptainName,
			Phone: row.ViceCaptainPhone,
			Email: row.ViceCaptainEmail,
		},
		PaymentReceiptURL: row.PaymentReceiptURL.String,
		PastorLetterURL:   row.PastorLetterURL.String,
		GroupPhotoURL:     row.GroupPhotoURL.String,
		Status:            registration.Status(row.Status),
		CreatedAt:         row.CreatedAt,
	}
}

func playerFromRow(row playerTableModel) registration.Player {
	return registration.Player{
		InternalID:          row.InternalID,
		PublicID:            row.PublicID,
		TeamInternalID:      row.TeamInternalID,
		Name:                row.Name,
		Role:                row.Role,
		AadharFileURL:       row.AadharFileURL.String,
		SubscriptionFileURL: row.SubscriptionFileURL.String,
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
