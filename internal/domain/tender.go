package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Normalized status vocabulary. The set is open-ended: source-specific
// labels that the normalizer does not recognize pass through as-is
// (lower-cased), so filters still work on them.
const (
	StatusOpen      = "open"
	StatusAwarded   = "awarded"
	StatusCancelled = "cancelled"
	StatusClosed    = "closed"
	StatusCompleted = "completed"
)

// DefaultCurrency is assumed whenever a tender carries a price but the
// source did not state a currency.
const DefaultCurrency = "CZK"

// Attachment is a document published alongside a tender notice.
type Attachment struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
}

// Tender is one public procurement notice in its canonical flat shape.
// Records are produced by external sources and only read here; there is
// no local mutation beyond normalization at ingest time.
type Tender struct {
	// HashID is the deduplication key derived from the notice content.
	HashID string `json:"hashId"`

	// SourceID tags the origin system (e.g. "nen").
	SourceID string `json:"source"`

	// ExternalID is the source-assigned identifier, unique within a source.
	ExternalID string `json:"externalId"`

	Title         string `json:"title"`
	Buyer         string `json:"buyer,omitempty"`
	Description   string `json:"description,omitempty"`
	ProcedureType string `json:"procedureType,omitempty"`

	// CPVCodes keeps the source order even though it carries no meaning.
	CPVCodes []string `json:"cpv"`

	Country string `json:"country"`
	Region  string `json:"region,omitempty"`

	EstimatedPrice *float64 `json:"estimatedPrice,omitempty"`
	Currency       string   `json:"currency,omitempty"`

	PublicationDate time.Time  `json:"publicationDate"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	Status      string       `json:"status,omitempty"`
	Attachments []Attachment `json:"attachments"`
	NoticeURL   string       `json:"noticeUrl,omitempty"`
}

// Normalize enforces the model invariants in place: a non-empty external id,
// non-nil sequences, lower-cased trimmed status/region, date-granularity
// deadlines, a defaulted currency when a price is present, and
// createdAt <= updatedAt. It also assigns HashID when missing.
func (t *Tender) Normalize() error {
	t.ExternalID = strings.TrimSpace(t.ExternalID)
	if t.ExternalID == "" {
		return fmt.Errorf("tender %q: empty external id", t.Title)
	}

	t.Title = strings.TrimSpace(t.Title)
	t.Buyer = strings.TrimSpace(t.Buyer)
	t.Status = strings.ToLower(strings.TrimSpace(t.Status))
	t.Region = strings.ToLower(strings.TrimSpace(t.Region))

	if t.CPVCodes == nil {
		t.CPVCodes = []string{}
	}
	if t.Attachments == nil {
		t.Attachments = []Attachment{}
	}

	if t.EstimatedPrice != nil && t.Currency == "" {
		t.Currency = DefaultCurrency
	}

	if t.Deadline != nil {
		d := t.Deadline.UTC().Truncate(24 * time.Hour)
		t.Deadline = &d
	}

	t.CreatedAt = t.CreatedAt.UTC().Truncate(time.Second)
	t.UpdatedAt = t.UpdatedAt.UTC().Truncate(time.Second)
	if t.UpdatedAt.Before(t.CreatedAt) {
		t.UpdatedAt = t.CreatedAt
	}

	if t.HashID == "" {
		t.HashID = t.ComputeHashID()
	}
	return nil
}

// ComputeHashID derives the deduplication key from the fields that identify
// a notice across re-fetches: title, buyer, deadline and external id.
func (t *Tender) ComputeHashID() string {
	deadline := ""
	if t.Deadline != nil {
		deadline = t.Deadline.UTC().Format("2006-01-02")
	}
	s := fmt.Sprintf("%s|%s|%s|%s", t.Title, t.Buyer, deadline, t.ExternalID)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
