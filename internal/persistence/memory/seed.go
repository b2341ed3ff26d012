package memory

import (
	"time"

	"example.com/casefeed/internal/domain"
)

// Seed loads a small demonstration data set for local development.
func Seed(s *Store) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	score := 7

	park := s.AddClient(domain.Client{ID: "client-park", Name: "Park Jiwoo"})
	kim := s.AddClient(domain.Client{ID: "client-kim", Name: "Kim Minsu"})
	lee := s.AddClient(domain.Client{ID: "client-lee", Name: "Lee Seoyeon"})

	s.AddConsultation(domain.Consultation{ClientID: park.ID, ActorID: "staff-1", Date: day(2024, 1, 8), Title: "Intake consultation", Content: "Discussed seating needs", Method: "visit", Status: "completed"})
	s.AddConsultation(domain.Consultation{ClientID: kim.ID, ActorID: "staff-2", Date: day(2024, 1, 15), Title: "Phone follow-up", Content: "Wheelchair fit feels loose", Method: "phone", Status: "completed"})
	s.AddAssessment(domain.Assessment{ClientID: park.ID, ActorID: "staff-1", Date: day(2024, 1, 10), Title: "Mobility assessment", Category: "mobility", Summary: "Needs lateral support", Score: &score})
	s.AddCustomization(domain.CustomizationRequest{ClientID: park.ID, ActorID: "staff-3", Date: day(2024, 1, 20), Title: "Seat insert", Description: "Custom moulded seat insert", Device: "wheelchair", Status: "in_progress"})
	due := day(2024, 4, 1)
	s.AddRental(domain.Rental{ClientID: kim.ID, ActorID: "staff-2", Date: day(2024, 2, 1), Title: "Wheelchair rental", Description: "Manual wheelchair", Quantity: 1, Status: "active", DueDate: &due})
	s.AddRental(domain.Rental{ClientID: lee.ID, ActorID: "staff-2", Date: day(2024, 2, 3), Title: "Walker rental", Quantity: 1, Status: "returned"})
	end := time.Date(2024, 2, 5, 11, 0, 0, 0, time.UTC)
	s.AddSchedule(domain.Schedule{ClientID: park.ID, ActorID: "staff-3", Kind: "fitting", Title: "Seat insert fitting", Location: "Workshop", StartsAt: time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC), EndsAt: &end})
	s.AddSchedule(domain.Schedule{ClientID: lee.ID, ActorID: "staff-1", Kind: "visit", Title: "Home visit", Memo: "Check bathroom access", StartsAt: time.Date(2024, 2, 9, 14, 0, 0, 0, time.UTC)})
}
