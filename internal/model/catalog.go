package model

import (
	"time"
)

// CarSpecification is a single extracted product variant row. The extraction
// contract requires manufacturer, model name, grade, and price; every other
// field is nullable and stays nil when the source document does not state it.
// The ID is assigned by the extraction gateway, is unique within one run, and
// serves only as a row key for display and editing.
type CarSpecification struct {
	ID           string   `json:"id"`
	Manufacturer *string  `json:"manufacturer"`
	ModelName    *string  `json:"model_name"`
	Grade        *string  `json:"grade"`
	Price        *float64 `json:"price"`
	IssueDate    *string  `json:"issue_date"`
	EngineType   *string  `json:"engine_type"`
	Displacement *string  `json:"displacement"`
	MaxPower     *string  `json:"max_power"`
	MaxTorque    *string  `json:"max_torque"`
	FuelEconomy  *string  `json:"fuel_economy"`
	Options      []string `json:"options,omitempty"`
}

// PagePreview is a rendered page image kept alongside a catalog record so the
// UI can show the original document. Absent for URL sources.
type PagePreview struct {
	Number    int    `json:"number"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"`
}

// CatalogRecord is one persisted extraction run. ID and CreatedAt are
// assigned by the store on create and never change afterwards. RawJSON and
// RawText hold the model output verbatim for audit views; either may be empty
// when the corresponding extraction branch failed.
type CatalogRecord struct {
	ID          string             `json:"id"`
	SourceLabel string             `json:"source_label"`
	CreatedAt   time.Time          `json:"created_at"`
	Specs       []CarSpecification `json:"extracted_data"`
	RawJSON     string             `json:"raw_json"`
	RawText     string             `json:"raw_text"`
	Summary     *string            `json:"summary,omitempty"`
	Pages       []PagePreview      `json:"pages,omitempty"`
}

// Page is one unit of source material handed to the extraction gateway:
// either a rendered page image (Data + MediaType set) or a text blob for
// URL sources (Text set).
type Page struct {
	Number    int
	MediaType string
	Data      []byte
	Text      string
}

// IsImage reports whether the page carries encoded image data rather than text.
func (p Page) IsImage() bool {
	return len(p.Data) > 0
}

// StrPtr returns a pointer to s. Convenience for building records in tests
// and fixtures.
func StrPtr(s string) *string { return &s }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }
