package domain

import "time"

// Record is one entity in the asset registry. The identifier is unique and
// immutable; everything else is read-mostly from this service's perspective
// (writes happen in the CRUD collaborator).
type Record struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DataSource  string    `json:"data_source"`
	Condition   string    `json:"condition"`
	Criticality string    `json:"criticality"`
	Category    string    `json:"category"`
	Location    string    `json:"location"`
	AgeYears    float64   `json:"age_years"`
	InstallYear int       `json:"install_year,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
