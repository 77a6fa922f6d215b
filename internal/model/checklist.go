package model

import (
	"fmt"
	"time"
)

// StepKind discriminates checklist step payloads.
type StepKind string

const (
	StepInstruction      StepKind = "instruction"
	StepInventorySelect  StepKind = "inventory_select"
	StepNumberInput      StepKind = "number_input"
	StepSystemAssignment StepKind = "system_assignment"
	StepDataCapture      StepKind = "data_capture"
	StepPhoto            StepKind = "photo"
)

// ChecklistStep is one step definition in a template's checklist. The
// payload fields below the discriminator only apply to their own kind;
// Validate enforces that per kind.
type ChecklistStep struct {
	Kind     StepKind `json:"kind"`
	Label    string   `json:"label"`
	Required bool     `json:"required,omitempty"`

	InventoryItemID uint     `json:"inventoryItemId,omitempty"` // inventory_select
	Unit            string   `json:"unit,omitempty"`            // number_input
	MinValue        *float64 `json:"minValue,omitempty"`        // number_input
	MaxValue        *float64 `json:"maxValue,omitempty"`        // number_input
	System          string   `json:"system,omitempty"`          // system_assignment
	CaptureFields   []string `json:"captureFields,omitempty"`   // data_capture
}

// Validate checks the step's payload against its kind.
func (s ChecklistStep) Validate() error {
	if s.Label == "" {
		return fmt.Errorf("checklist step requires a label")
	}
	switch s.Kind {
	case StepInstruction, StepPhoto:
		return nil
	case StepInventorySelect:
		if s.InventoryItemID == 0 {
			return fmt.Errorf("inventory_select step %q requires inventoryItemId", s.Label)
		}
	case StepNumberInput:
		if s.Unit == "" {
			return fmt.Errorf("number_input step %q requires a unit", s.Label)
		}
		if s.MinValue != nil && s.MaxValue != nil && *s.MinValue > *s.MaxValue {
			return fmt.Errorf("number_input step %q has minValue above maxValue", s.Label)
		}
	case StepSystemAssignment:
		if s.System == "" {
			return fmt.Errorf("system_assignment step %q requires a system", s.Label)
		}
	case StepDataCapture:
		if len(s.CaptureFields) == 0 {
			return fmt.Errorf("data_capture step %q requires captureFields", s.Label)
		}
	default:
		return fmt.Errorf("unknown checklist step kind %q", s.Kind)
	}
	return nil
}

// ChecklistItem is the concrete copy of a step carried by a task instance,
// with per-item completion state filled in by workers.
type ChecklistItem struct {
	Step        ChecklistStep `json:"step"`
	Completed   bool          `json:"completed"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Value       string        `json:"value,omitempty"`
	Note        string        `json:"note,omitempty"`
}

// NewChecklist builds fresh unchecked items from template steps.
func NewChecklist(steps []ChecklistStep) []ChecklistItem {
	items := make([]ChecklistItem, 0, len(steps))
	for _, s := range steps {
		items = append(items, ChecklistItem{Step: s})
	}
	return items
}

// MergeChecklist rebuilds a checklist from the current template steps while
// preserving completion state, values and notes of items whose label
// survived the template edit. Used by the apply_template resolution.
func MergeChecklist(current []ChecklistItem, steps []ChecklistStep) []ChecklistItem {
	byLabel := make(map[string]ChecklistItem, len(current))
	for _, item := range current {
		byLabel[item.Step.Label] = item
	}
	merged := make([]ChecklistItem, 0, len(steps))
	for _, s := range steps {
		item := ChecklistItem{Step: s}
		if prev, ok := byLabel[s.Label]; ok {
			item.Completed = prev.Completed
			item.CompletedAt = prev.CompletedAt
			item.Value = prev.Value
			item.Note = prev.Note
		}
		merged = append(merged, item)
	}
	return merged
}
