package models

import "time"

// OrderTimeLayout is the timestamp layout used in the order log and notifications.
const OrderTimeLayout = "2006-01-02 15:04:05"

// OrderRecord is the immutable result of one completed conversation.
type OrderRecord struct {
	ID        string    `json:"id"`
	Requester string    `json:"requester"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	Memory    string    `json:"memory"`
	Colors    string    `json:"colors"`
	CreatedAt time.Time `json:"created_at"`
}

// Timestamp returns CreatedAt formatted with OrderTimeLayout.
func (o OrderRecord) Timestamp() string {
	return o.CreatedAt.Format(OrderTimeLayout)
}

// Row returns the seven log columns in sink order:
// identifier, phone, timestamp, name, model, memory list, color list.
func (o OrderRecord) Row() []string {
	return []string{o.Requester, o.Phone, o.Timestamp(), o.Name, o.Model, o.Memory, o.Colors}
}
