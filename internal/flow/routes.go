package flow

import (
	"strings"

	"github.com/BTreeMap/OrderPipe/internal/models"
)

// anyStage matches every stage.
const anyStage models.Stage = "*"

type route struct {
	stage  models.Stage
	kind   models.EventKind
	token  string // exact token match
	prefix string // token prefix match
	handle HandlerFunc
}

func (r route) matches(stage models.Stage, ev models.Event) bool {
	if r.stage != anyStage && r.stage != stage {
		return false
	}
	if r.kind != ev.Kind {
		return false
	}
	switch {
	case r.token != "":
		return ev.Token == r.token
	case r.prefix != "":
		return strings.HasPrefix(ev.Token, r.prefix)
	}
	return true
}

// buildRoutes returns the route table. Order matters: exact tokens precede
// the prefixes they share.
func (f *OrderFlow) buildRoutes() []route {
	return []route{
		{stage: anyStage, kind: models.EventCancelCommand, handle: f.cancel},
		{stage: anyStage, kind: models.EventEntryCommand, handle: f.enter},
		{stage: anyStage, kind: models.EventChoiceSelected, token: models.TokenNewOrder, handle: f.enter},
		{stage: anyStage, kind: models.EventChoiceSelected, token: models.TokenContactManager, handle: f.info},
		{stage: anyStage, kind: models.EventChoiceSelected, token: models.TokenShowSales, handle: f.info},
		{stage: anyStage, kind: models.EventChoiceSelected, token: models.TokenAboutShop, handle: f.info},

		{stage: models.StageChoosingEntry, kind: models.EventChoiceSelected, token: models.TokenStartOrder, handle: f.beginSelection},
		// start buttons on older menus outlive their stage
		{stage: anyStage, kind: models.EventChoiceSelected, token: models.TokenStartOrder, handle: f.restartSelection},
		{stage: models.StageModelSelect, kind: models.EventChoiceSelected, prefix: models.PrefixModel, handle: f.chooseModel},
		{stage: models.StageMemorySelect, kind: models.EventChoiceSelected, token: f.memoryList.DoneToken(), handle: f.memoryDone},
		{stage: models.StageMemorySelect, kind: models.EventChoiceSelected, prefix: models.PrefixMemory, handle: f.toggleMemory},
		{stage: models.StageColorSelect, kind: models.EventChoiceSelected, token: f.colorList.DoneToken(), handle: f.colorDone},
		{stage: models.StageColorSelect, kind: models.EventChoiceSelected, prefix: models.PrefixColor, handle: f.toggleColor},
		{stage: models.StageConfirm, kind: models.EventChoiceSelected, token: models.TokenConfirmOrder, handle: f.confirm},
		{stage: models.StageConfirm, kind: models.EventChoiceSelected, token: models.TokenEditOrder, handle: f.edit},
		{stage: models.StageContactCapture, kind: models.EventFreeText, handle: f.submitContact},
	}
}

// Route returns the handler for ev in stage, if any.
func (f *OrderFlow) Route(stage models.Stage, ev models.Event) (HandlerFunc, bool) {
	for _, r := range f.routes {
		if r.matches(stage, ev) {
			return r.handle, true
		}
	}
	return nil, false
}

// Accepts reports whether an event would be routed in stage.
func (f *OrderFlow) Accepts(stage models.Stage, ev models.Event) bool {
	_, ok := f.Route(stage, ev)
	return ok
}
