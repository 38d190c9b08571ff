package domain

import "time"

// AISections holds the generated long-form descriptions of a medication.
type AISections struct {
	Description       string `json:"aiDescription,omitempty"`
	Warnings          string `json:"aiWarnings,omitempty"`
	Dosing            string `json:"aiDosing,omitempty"`
	UseAndConditions  string `json:"aiUseAndConditions,omitempty"`
	Contraindications string `json:"aiContraindications,omitempty"`
}

func (s AISections) Fields() []string {
	return []string{s.Description, s.Warnings, s.Dosing, s.UseAndConditions, s.Contraindications}
}

// Medication is the record both search paths return. JSON names follow the
// public API casing.
type Medication struct {
	ID              string                   `json:"id"`
	Name            string                   `json:"name"`
	GenericName     string                   `json:"genericName"`
	Slug            string                   `json:"slug"`
	Title           string                   `json:"title,omitempty"`
	LabelerID       string                   `json:"labelerId,omitempty"`
	LabelerName     string                   `json:"labelerName"`
	ProductType     string                   `json:"productType"`
	EffectiveTime   string                   `json:"effectiveTime"`
	MetaDescription string                   `json:"metaDescription,omitempty"`
	Sections        AISections               `json:"sections"`
	Blocks          []Block                  `json:"blocks,omitempty"`
	Tags            map[TagCategory][]string `json:"tagsByCategory,omitempty"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

func (m *Medication) Ref() EntityRef {
	return EntityRef{ID: m.ID, Name: m.Name, Slug: m.Slug}
}
