package flow

import (
	"fmt"

	"github.com/BTreeMap/OrderPipe/internal/models"
)

// Texts holds every user-facing string of the order conversation.
type Texts struct {
	Welcome        string
	StartLabel     string
	ChooseModel    string
	RestartModel   string
	MemoryDone     string
	ColorPrompt    string
	ColorDone      string
	ConfirmLabel   string
	EditLabel      string
	ContactPrompt  string
	Thanks         string
	Cancelled      string
	Manager        string
	Sales          string
	Shop           string
	NewOrderLabel  string
	ManagerLabel   string
	SalesLabel     string
	ShopLabel      string
	MemoryTemplate string // %s is the model
	ImageTemplate  string // %s is the model
}

// DefaultTexts returns the storefront's stock texts.
func DefaultTexts() Texts {
	return Texts{
		Welcome: "👋 Welcome to TechStore!\n\n" +
			"This bot will help you pre-order the new iPhone 17 📱.\n\n" +
			"Press the button to begin 🚀",
		StartLabel:     "🚀 Start",
		ChooseModel:    "Choose an iPhone model:",
		RestartModel:   "🔄 Let's start over!\n\nChoose a model:",
		MemoryTemplate: "You chose: %s ✅\n\nNow choose the storage (several allowed):",
		MemoryDone:     "Done ➡️",
		ImageTemplate:  "🎨 Available colors for %s:",
		ColorPrompt:    "Now choose the color (several allowed):",
		ColorDone:      "Done ✅",
		ConfirmLabel:   "✅ Confirm order",
		EditLabel:      "✏️ Change selection",
		ContactPrompt:  "✍️ Please send your full name and phone number in one line.\n\nExample: Ivanov Ivan +79001234567",
		Thanks:         "🎉 Thank you! Your order has been received. A manager will contact you shortly.",
		Cancelled:      "❌ Order cancelled.",
		Manager:        "📞 Contact a manager:\nPhone: +7 (900) 123-45-67\nTelegram: @manager\nEmail: support@techstore.com",
		Sales:          "🔥 Current promotions:\n- 20% off accessories with a pre-order\n- 0% installments for 6 months",
		Shop: "ℹ️ About TechStore:\n" +
			"🏬 Address: 10 Primernaya St, Moscow\n" +
			"📞 Phone: +7 (900) 123-45-67\n" +
			"🛡 Warranty: 1 year on all devices\n" +
			"🕒 Hours: Mon-Fri 10:00-20:00, Sat-Sun 11:00-18:00",
		NewOrderLabel: "🛒 New order",
		ManagerLabel:  "👨‍💼 Contact a manager",
		SalesLabel:    "🔥 Promotions",
		ShopLabel:     "ℹ️ About the shop",
	}
}

func (t Texts) memoryTitle(model string) string {
	return fmt.Sprintf(t.MemoryTemplate, model)
}

func (t Texts) imageCaption(model string) string {
	return fmt.Sprintf(t.ImageTemplate, model)
}

func (t Texts) summary(model, memory, colors string) string {
	return fmt.Sprintf("Your selection:\n📱 %s\n💾 %s\n🎨 %s", model, memory, colors)
}

func (t Texts) entryMenu() models.Render {
	return models.ShowChoiceList(t.Welcome, []models.Choice{
		{Label: t.StartLabel, Token: models.TokenStartOrder},
	}, nil)
}

func (t Texts) confirmChoices() []models.Choice {
	return []models.Choice{
		{Label: t.ConfirmLabel, Token: models.TokenConfirmOrder},
		{Label: t.EditLabel, Token: models.TokenEditOrder},
	}
}

// postOrderMenu lists the four follow-up actions.
func (t Texts) postOrderMenu(title string) models.Render {
	return models.ShowChoiceList(title, []models.Choice{
		{Label: t.NewOrderLabel, Token: models.TokenNewOrder},
		{Label: t.ManagerLabel, Token: models.TokenContactManager},
		{Label: t.SalesLabel, Token: models.TokenShowSales},
		{Label: t.ShopLabel, Token: models.TokenAboutShop},
	}, nil)
}

func (t Texts) info(token string) string {
	switch token {
	case models.TokenContactManager:
		return t.Manager
	case models.TokenShowSales:
		return t.Sales
	default:
		return t.Shop
	}
}
