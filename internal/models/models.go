package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Party struct {
	bun.BaseModel `bun:"table:parties,alias:p"`

	ID          uuid.UUID `bun:"id,pk,type:text"             json:"id"`
	AdminID     string    `bun:"admin_id,notnull"            json:"admin_id"`
	Name        string    `bun:"name,notnull"                json:"name"`
	StartedAt   time.Time `bun:"started_at,nullzero,notnull" json:"started_at"`
	EndsAt      time.Time `bun:"ends_at,nullzero,notnull"    json:"ends_at"`
	MatchesMade bool      `bun:"matches_made,notnull"        json:"matches_made"`

	Signups []Signup `bun:"rel:has-many,join:id=party_id" json:"signups,omitempty"`
}

// Open reports whether the party is still accepting signups at t.
func (p *Party) Open(t time.Time) bool {
	return t.Before(p.EndsAt)
}

// Signup payloads (Name, Hint) are opaque to this service: the collaborating
// chat layer encodes them before submission and decodes them at render time.
type Signup struct {
	bun.BaseModel `bun:"table:signups,alias:s"`

	PartyID uuid.UUID `bun:"party_id,notnull,type:text" json:"party_id"`
	UserID  string    `bun:"user_id,notnull"            json:"user_id"`
	Name    string    `bun:"name,notnull"               json:"name"`
	Hint    string    `bun:"hint,notnull"               json:"hint"`
}

type Match struct {
	bun.BaseModel `bun:"table:matches,alias:m"`

	PartyID      uuid.UUID `bun:"party_id,notnull,type:text" json:"party_id"`
	GiverID      string    `bun:"giver_id,notnull"           json:"giver_id"`
	ReceiverID   string    `bun:"receiver_id,notnull"        json:"receiver_id"`
	ReceiverName string    `bun:"receiver_name,notnull"      json:"receiver_name"`
	ReceiverHint string    `bun:"receiver_hint,notnull"      json:"receiver_hint"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
