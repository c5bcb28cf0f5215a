package casedock

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

// Participant is a person attached to a case.
type Participant struct {
	ID      string    `json:"id"`
	Email   string    `json:"email"`
	Name    string    `json:"name,omitempty"`
	Role    string    `json:"role"`
	AddedAt time.Time `json:"addedAt"`
}

// ListParticipants returns a page of the case's participants.
func (c *Client) ListParticipants(ctx context.Context, caseID string, page PageParams) (*List[Participant], error) {
	if caseID == "" {
		return nil, errors.New("casedock: case id is required")
	}
	q := url.Values{}
	page.applyTo(q)

	var out List[Participant]
	if err := c.do(ctx, http.MethodGet, "/cases/"+url.PathEscape(caseID)+"/participants", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ParticipantAddParams describes a participant to attach.
type ParticipantAddParams struct {
	Email string `json:"email"`
	// Role is the participant's relationship to the case, e.g. "requester",
	// "collaborator", "observer". The server defaults it when omitted.
	Role string `json:"role,omitempty"`
}

// AddParticipant attaches a person to the case.
func (c *Client) AddParticipant(ctx context.Context, caseID string, p ParticipantAddParams) (*Participant, error) {
	if caseID == "" {
		return nil, errors.New("casedock: case id is required")
	}
	if p.Email == "" {
		return nil, errors.New("casedock: participant email is required")
	}
	var out Participant
	if err := c.do(ctx, http.MethodPost, "/cases/"+url.PathEscape(caseID)+"/participants", nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveParticipant detaches a participant from the case.
func (c *Client) RemoveParticipant(ctx context.Context, caseID, participantID string) error {
	if caseID == "" {
		return errors.New("casedock: case id is required")
	}
	if participantID == "" {
		return errors.New("casedock: participant id is required")
	}
	path := "/cases/" + url.PathEscape(caseID) + "/participants/" + url.PathEscape(participantID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}
