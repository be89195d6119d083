// Package models defines flow type definitions to avoid circular imports.
package models

// Stage represents a named point in the order conversation.
type Stage string

// Stage constants for the order flow.
const (
	StageIdle           Stage = "IDLE"
	StageChoosingEntry  Stage = "CHOOSING_ENTRY"
	StageModelSelect    Stage = "MODEL_SELECT"
	StageMemorySelect   Stage = "MEMORY_SELECT"
	StageColorSelect    Stage = "COLOR_SELECT"
	StageConfirm        Stage = "CONFIRM"
	StageContactCapture Stage = "CONTACT_CAPTURE"
)

// Stages lists every stage in happy-path order, starting with Idle.
var Stages = []Stage{
	StageIdle,
	StageChoosingEntry,
	StageModelSelect,
	StageMemorySelect,
	StageColorSelect,
	StageConfirm,
	StageContactCapture,
}

// IsValidStage checks if the given stage is known.
func IsValidStage(s Stage) bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// Action tokens carried by ChoiceSelected events.
const (
	TokenStartOrder     = "start_order"
	TokenNewOrder       = "new_order"
	TokenConfirmOrder   = "confirm_order"
	TokenEditOrder      = "edit_order"
	TokenContactManager = "contact_manager"
	TokenShowSales      = "show_sales"
	TokenAboutShop      = "about_shop"
)

// Token prefixes for parameterised choices. The suffix after the prefix is
// either an index (models), an encoded option label, or TokenDone.
const (
	PrefixModel  = "model_"
	PrefixMemory = "mem_"
	PrefixColor  = "col_"

	TokenDone = "done"
)
