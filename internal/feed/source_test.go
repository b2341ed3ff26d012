package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/casefeed/internal/domain"
	"example.com/casefeed/internal/persistence/memory"
)

func TestScheduleSourceTruncatesStartToLocalDate(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	store := memory.NewStore()
	store.AddSchedule(domain.Schedule{
		ID:       "late",
		ClientID: "C1",
		Kind:     "delivery",
		Title:    "Deliver chair",
		StartsAt: time.Date(2024, 5, 1, 20, 30, 0, 0, time.UTC), // 2024-05-02 05:30 KST
	})

	records, err := NewScheduleSource(store, SourceOptions{Location: seoul}).Fetch(context.Background(), clientFilter("C1"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "schedule_delivery", records[0].Type)
	require.Equal(t, "2024-05-02", records[0].DateString())
	require.Equal(t, "delivery", records[0].Metadata["kind"])
}

func TestSourcesMarkTextMatchesOnDescriptions(t *testing.T) {
	store := memory.NewStore()
	store.AddCustomization(domain.CustomizationRequest{ID: "cu-1", ClientID: "C1", Date: day("2024-04-01"), Title: "Seat insert", Description: "Needs a lateral SUPPORT pad"})
	store.AddCustomization(domain.CustomizationRequest{ID: "cu-2", ClientID: "C1", Date: day("2024-04-02"), Title: "Tray", Description: "lap tray"})

	f := clientFilter("C1")
	f.Query = "support"
	records, err := NewCustomizationSource(store, SourceOptions{}).Fetch(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, records, 2, "providers leave non-matching records for name widening")

	matched := map[string]bool{}
	for _, r := range records {
		matched[r.ID] = r.textMatched
	}
	require.True(t, matched["cu-1"])
	require.False(t, matched["cu-2"])
}

func TestSourcesReturnRecordsNewestFirst(t *testing.T) {
	store := seedStore()
	records, err := NewConsultationSource(store, SourceOptions{}).Fetch(context.Background(), clientFilter("C1"))
	require.NoError(t, err)
	require.Equal(t, []string{"cons-2", "cons-1"}, ids(records))
}

func TestRentalMetadataPassesThrough(t *testing.T) {
	due := day("2024-06-30")
	store := memory.NewStore()
	store.AddRental(domain.Rental{ID: "r", ClientID: "C1", Date: day("2024-06-01"), Title: "Wheelchair", Quantity: 2, Status: "active", DueDate: &due})

	records, err := NewRentalSource(store, SourceOptions{}).Fetch(context.Background(), clientFilter("C1"))
	require.NoError(t, err)
	require.Equal(t, 2, records[0].Metadata["quantity"])
	require.Equal(t, "2024-06-30", records[0].Metadata["due_date"])
	require.Equal(t, "active", records[0].Metadata["status"])
}
