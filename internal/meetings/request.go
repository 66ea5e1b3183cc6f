package meetings

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"v1tr0-backend/internal/clients"
	"v1tr0-backend/internal/httpx"
)

// BookingRequest is one of ContactBookingRequest or ProjectBookingRequest.
type BookingRequest interface {
	slot() SlotRequest
}

// ContactBookingRequest is the public booking form: the client is
// identified by the contact fields and saved by email.
type ContactBookingRequest struct {
	Date          string `json:"date" validate:"required,date"`
	Time          string `json:"time" validate:"required,clock"`
	Duration      int    `json:"duration" validate:"omitempty,slot30,lte=240"`
	ClientName    string `json:"clientName" validate:"required,max=120"`
	ClientEmail   string `json:"clientEmail" validate:"required,email"`
	ClientPhone   string `json:"clientPhone" validate:"omitempty,phone"`
	ClientCompany string `json:"clientCompany" validate:"omitempty,max=120"`
	MeetingType   string `json:"meetingType" validate:"omitempty,max=64"`
	Notes         string `json:"notes" validate:"omitempty,max=2000"`
}

func (r ContactBookingRequest) slot() SlotRequest {
	return SlotRequest{Date: r.Date, Time: r.Time, Duration: r.Duration}
}

// ProjectBookingRequest comes from the dashboard for an existing client.
type ProjectBookingRequest struct {
	ProjectID   string `json:"project_id" validate:"required,max=64"`
	ClientID    string `json:"client_id" validate:"required,max=64"`
	Date        string `json:"date" validate:"required,date"`
	Time        string `json:"time" validate:"required,clock"`
	Duration    int    `json:"duration" validate:"omitempty,slot30,lte=240"`
	Title       string `json:"title" validate:"omitempty,max=200"`
	MeetingType string `json:"meetingType" validate:"omitempty,max=64"`
	Notes       string `json:"notes" validate:"omitempty,max=2000"`
}

func (r ProjectBookingRequest) slot() SlotRequest {
	return SlotRequest{Date: r.Date, Time: r.Time, Duration: r.Duration}
}

type UpdateRequest struct {
	ID          string  `json:"id" validate:"required"`
	Date        *string `json:"date" validate:"omitempty,date"`
	Time        *string `json:"time" validate:"omitempty,clock"`
	Duration    *int    `json:"duration" validate:"omitempty,slot30,lte=240"`
	Status      *string `json:"status" validate:"omitempty,oneof=scheduled completed cancelled"`
	MeetingType *string `json:"meetingType" validate:"omitempty,max=64"`
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Notes       *string `json:"notes" validate:"omitempty,max=2000"`
}

// DecodeBookingRequest picks the variant from the body's keys and decodes
// it strictly. Bodies matching neither, or both, are rejected.
func DecodeBookingRequest(body []byte) (BookingRequest, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return nil, &ValidationError{Message: "invalid json"}
	}
	_, hasProject := keys["project_id"]
	_, hasEmail := keys["clientEmail"]
	_, hasName := keys["clientName"]
	hasContact := hasEmail || hasName

	switch {
	case hasProject && hasContact:
		return nil, &ValidationError{Message: "ambiguous booking request", Details: map[string]string{"project_id": "excluded_with", "clientEmail": "excluded_with"}}
	case hasProject:
		var req ProjectBookingRequest
		if err := httpx.DecodeJSON(bytes.NewReader(body), &req); err != nil {
			return nil, decodeError(err)
		}
		return req, nil
	case hasContact:
		var req ContactBookingRequest
		if err := httpx.DecodeJSON(bytes.NewReader(body), &req); err != nil {
			return nil, decodeError(err)
		}
		return req, nil
	default:
		return nil, &ValidationError{Message: "unrecognized booking request", Details: map[string]string{"clientEmail": "required"}}
	}
}

// normalizeRequest trims free text and puts the email in its key form so
// validation and the client upsert see the same value.
func normalizeRequest(req BookingRequest) BookingRequest {
	switch r := req.(type) {
	case ContactBookingRequest:
		r.Date = strings.TrimSpace(r.Date)
		r.Time = strings.TrimSpace(r.Time)
		r.ClientName = strings.TrimSpace(r.ClientName)
		r.ClientEmail = clients.NormalizeEmail(r.ClientEmail)
		r.ClientPhone = strings.TrimSpace(r.ClientPhone)
		r.ClientCompany = strings.TrimSpace(r.ClientCompany)
		r.MeetingType = strings.TrimSpace(r.MeetingType)
		return r
	case ProjectBookingRequest:
		r.ProjectID = strings.TrimSpace(r.ProjectID)
		r.ClientID = strings.TrimSpace(r.ClientID)
		r.Date = strings.TrimSpace(r.Date)
		r.Time = strings.TrimSpace(r.Time)
		r.MeetingType = strings.TrimSpace(r.MeetingType)
		return r
	}
	return req
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ValidationError{Message: "invalid json", Details: map[string]string{typeErr.Field: "type"}}
	}
	return &ValidationError{Message: "invalid json: " + err.Error()}
}
