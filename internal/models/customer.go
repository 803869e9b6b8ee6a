package models

import "time"

type CustomerStatus string

const (
	CustomerActive   CustomerStatus = "active"
	CustomerInactive CustomerStatus = "inactive"
	CustomerBlocked  CustomerStatus = "blocked"
)

// Customer is the directory record the core consults before opening
// accounts. Customer management itself lives outside the engine.
type Customer struct {
	CustomerID string         `json:"customer_id"`
	Name       string         `json:"name"`
	Address    string         `json:"address"`
	BirthDate  string         `json:"birth_date"`
	Status     CustomerStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}
