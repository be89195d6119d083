// Package order assembles completed conversations into order records and
// delivers them to the order log and the operator.
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/BTreeMap/OrderPipe/internal/contact"
	"github.com/BTreeMap/OrderPipe/internal/models"
	"github.com/BTreeMap/OrderPipe/internal/selection"
	"github.com/google/uuid"
)

// Draft holds everything the conversation collected before submission.
type Draft struct {
	Requester models.Requester
	Model     string
	Memory    selection.Set
	Colors    selection.Set
	Contact   contact.Contact
}

// NewRecord builds the immutable order record for draft at time now.
// Selections are sorted and joined with ", "; an empty selection becomes "".
func NewRecord(d Draft, now time.Time) models.OrderRecord {
	return models.OrderRecord{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Requester: d.Requester.Label(),
		Phone:     d.Contact.Phone,
		Name:      d.Contact.Name,
		Model:     d.Model,
		Memory:    d.Memory.Join(),
		Colors:    d.Colors.Join(),
		CreatedAt: now,
	}
}

// FormatNotification renders the operator message for rec.
func FormatNotification(rec models.OrderRecord) string {
	var b strings.Builder
	b.WriteString("📦 New order\n")
	fmt.Fprintf(&b, "👤 User: %s\n", rec.Requester)
	fmt.Fprintf(&b, "🧾 Name: %s\n", orDash(rec.Name))
	fmt.Fprintf(&b, "📞 Phone: %s\n", rec.Phone)
	fmt.Fprintf(&b, "📱 Model: %s\n", rec.Model)
	fmt.Fprintf(&b, "💾 Memory: %s\n", orDash(rec.Memory))
	fmt.Fprintf(&b, "🎨 Colors: %s\n", orDash(rec.Colors))
	fmt.Fprintf(&b, "🕒 Date: %s", rec.Timestamp())
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
