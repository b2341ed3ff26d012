// Package domain defines the case records owned by the case-management service and
// the store boundary the activity feed reads them through.
package domain

import "time"

// Client is the case-managed individual every record belongs to.
type Client struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Consultation is a counselling note written by a staff member.
type Consultation struct {
	ID        string
	ClientID  string
	ActorID   string
	Date      time.Time
	Title     string
	Content   string
	Method    string
	Status    string
	CreatedAt time.Time
}

// Assessment records an evaluation of the client's needs.
type Assessment struct {
	ID        string
	ClientID  string
	ActorID   string
	Date      time.Time
	Title     string
	Category  string
	Summary   string
	Score     *int
	CreatedAt time.Time
}

// CustomizationRequest tracks a request to adapt or build a device for the client.
type CustomizationRequest struct {
	ID          string
	ClientID    string
	ActorID     string
	Date        time.Time
	Title       string
	Description string
	Device      string
	Status      string
	CreatedAt   time.Time
}

// Rental is an equipment loan.
type Rental struct {
	ID          string
	ClientID    string
	ActorID     string
	Date        time.Time
	Title       string
	Description string
	Quantity    int
	Status      string
	DueDate     *time.Time
	CreatedAt   time.Time
}

// Schedule is a calendar entry. Kind partitions schedules (visit, fitting, delivery, ...).
type Schedule struct {
	ID        string
	ClientID  string
	ActorID   string
	Kind      string
	Title     string
	Memo      string
	Location  string
	StartsAt  time.Time
	EndsAt    *time.Time
	CreatedAt time.Time
}
