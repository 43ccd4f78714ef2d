package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Candidate is the postgres-side candidate record keyed by resume id; the
// interview service snapshots it into the session at start.
type Candidate struct {
	ResumeID    string `gorm:"column:resume_id;type:uuid;primaryKey" json:"resume_id"`
	FullName    string `gorm:"column:full_name;type:text" json:"full_name"`
	CurrentRole string `gorm:"column:current_role;type:text" json:"current_role"`
	ResumeText  string `gorm:"column:resume_text;type:text" json:"resume_text"`

	ExperienceYears int `gorm:"column:experience_years" json:"experience_years"`

	Skills pq.StringArray `gorm:"column:skills;type:text[]" json:"skills"`

	// JSONB, structure left flexible
	Experience datatypes.JSON `gorm:"column:experience;type:jsonb" json:"experience"`
	Education  datatypes.JSON `gorm:"column:education;type:jsonb" json:"education"`

	// pgvector
	ResumeEmbedding pgvector.Vector `gorm:"column:resume_embedding;type:vector(768)" json:"resume_embedding"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Candidate) TableName() string { return "candidates" }
