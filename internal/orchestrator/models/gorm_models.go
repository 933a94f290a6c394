// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// scanJSON decodes a JSON column stored as text or bytes into dst.
func scanJSON(value any, dst any, name string) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("cannot scan " + name + " from non-string/[]byte value")
	}
}

// SectionList is a JSON array of sections.
type SectionList []Section

// Scan implements the sql.Scanner interface
func (l *SectionList) Scan(value any) error {
	if value == nil {
		*l = SectionList{}
		return nil
	}
	return scanJSON(value, l, "SectionList")
}

// Value implements the driver.Valuer interface
func (l SectionList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

// TokenList is a JSON array of theme tokens.
type TokenList []ThemeToken

// Scan implements the sql.Scanner interface
func (l *TokenList) Scan(value any) error {
	if value == nil {
		*l = TokenList{}
		return nil
	}
	return scanJSON(value, l, "TokenList")
}

// Value implements the driver.Valuer interface
func (l TokenList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

// OutputJSON stores a frozen PipelineOutput. Generated images are stripped
// before saving; see StripImages.
type OutputJSON struct {
	*PipelineOutput
}

// Scan implements the sql.Scanner interface
func (o *OutputJSON) Scan(value any) error {
	if value == nil {
		o.PipelineOutput = nil
		return nil
	}
	out := &PipelineOutput{}
	if err := scanJSON(value, out, "OutputJSON"); err != nil {
		return err
	}
	o.PipelineOutput = out
	return nil
}

// Value implements the driver.Valuer interface
func (o OutputJSON) Value() (driver.Value, error) {
	if o.PipelineOutput == nil {
		return nil, nil
	}
	b, err := json.Marshal(o.PipelineOutput)
	return string(b), err
}

// LandingPage is a saved landing page or variation set.
type LandingPage struct {
	ID          string      `gorm:"primaryKey;type:text" json:"id"`
	Title       string      `gorm:"not null;type:text" json:"title"`
	Description string      `gorm:"type:text" json:"description"`
	Model       string      `gorm:"type:text" json:"model"`
	Sections    SectionList `gorm:"type:text" json:"sections"`
	RunID       string      `gorm:"type:text;index" json:"run_id,omitempty"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for LandingPage
func (LandingPage) TableName() string {
	return "landing_pages"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (p *LandingPage) BeforeCreate(tx *gorm.DB) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Sections == nil {
		p.Sections = SectionList{}
	}
	return nil
}

// OrderBumpRow is a saved order bump.
type OrderBumpRow struct {
	ID          string            `gorm:"primaryKey;type:text" json:"id"`
	Name        string            `gorm:"not null;type:text" json:"name"`
	Description string            `gorm:"type:text" json:"description"`
	Price       float64           `gorm:"not null" json:"price"`
	Category    OrderBumpCategory `gorm:"type:text;index" json:"category"`
	RunID       string            `gorm:"type:text;index" json:"run_id,omitempty"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for OrderBumpRow
func (OrderBumpRow) TableName() string {
	return "order_bumps"
}

// BeforeCreate validates the row before insert.
func (r *OrderBumpRow) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return r.OrderBump().Validate()
}

// OrderBump returns the domain record.
func (r OrderBumpRow) OrderBump() OrderBump {
	return OrderBump{Name: r.Name, Description: r.Description, Price: r.Price, Category: r.Category}
}

// ThemeRow is a saved theme.
type ThemeRow struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Name      string    `gorm:"not null;type:text" json:"name"`
	Tokens    TokenList `gorm:"type:text" json:"tokens"`
	RunID     string    `gorm:"type:text;index" json:"run_id,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for ThemeRow
func (ThemeRow) TableName() string {
	return "themes"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (r *ThemeRow) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Tokens == nil {
		r.Tokens = TokenList{}
	}
	return nil
}

// PipelineRun records one execution of a variant.
type PipelineRun struct {
	ID           string     `gorm:"primaryKey;type:text" json:"id"`
	Variant      Variant    `gorm:"type:text;index;not null" json:"variant"`
	Status       RunStatus  `gorm:"type:text;index;not null" json:"status"`
	Description  string     `gorm:"type:text" json:"description"`
	Model        string     `gorm:"type:text" json:"model"`
	Stage        string     `gorm:"type:text" json:"stage"`
	Percentage   int        `gorm:"type:integer" json:"percentage"`
	Output       OutputJSON `gorm:"type:text" json:"output,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// TableName returns the table name for PipelineRun
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (r *PipelineRun) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = RunStatusPending
	}
	return nil
}

// StripImages returns a copy of out without image payloads, for storage.
// Prompts and error flags are kept.
func StripImages(out *PipelineOutput) *PipelineOutput {
	if out == nil {
		return nil
	}
	cp := *out
	cp.Images = make([]ImageResult, len(out.Images))
	for i, r := range out.Images {
		r.Image = nil
		cp.Images[i] = r
	}
	if out.Theme != nil {
		th := *out.Theme
		th.Preview = nil
		cp.Theme = &th
	}
	return &cp
}
