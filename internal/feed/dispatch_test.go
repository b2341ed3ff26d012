package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/casefeed/internal/domain"
)

func TestDispatchActivatesOnlyServingProviders(t *testing.T) {
	store := seedStore()
	dispatcher := NewDispatcher(NewProviders(store, SourceOptions{}), NewDirectoryResolver(store), nil)

	names := func(ps []Provider) []string {
		out := make([]string, 0, len(ps))
		for _, p := range ps {
			out = append(out, p.Name())
		}
		return out
	}

	require.Equal(t, BaseTypes, names(dispatcher.Active(TypeAll)))
	require.Equal(t, []string{TypeRental}, names(dispatcher.Active(TypeRental)))
	require.Equal(t, []string{TypeSchedule}, names(dispatcher.Active(TypeSchedule)))
	require.Equal(t, []string{TypeSchedule}, names(dispatcher.Active(ScheduleType("delivery"))))
}

func TestDispatchBatchesNameLookupsPerProvider(t *testing.T) {
	store := seedStore()
	store.AddRental(domain.Rental{ID: "rent-3", ClientID: "S8", Date: day("2024-02-03"), Title: "Cushion"})
	store.AddRental(domain.Rental{ID: "rent-4", ClientID: "S7", Date: day("2024-02-04"), Title: "Ramp"})
	directory := &countingDirectory{ClientDirectory: store}
	dispatcher := NewDispatcher(NewProviders(store, SourceOptions{}), NewDirectoryResolver(directory), nil)

	results := dispatcher.Dispatch(context.Background(), searchFilter("Kim"))
	require.Len(t, results, len(BaseTypes))

	// Only providers that returned records consult the directory, once each.
	require.Equal(t, 3, directory.calls())
	for _, batch := range directory.batches {
		seen := map[string]bool{}
		for _, id := range batch {
			require.False(t, seen[id], "duplicate id %s in batch", id)
			seen[id] = true
		}
	}

	var rentals SourceResult
	for _, res := range results {
		if res.Source == TypeRental {
			rentals = res
		}
	}
	require.NoError(t, rentals.Err)
	require.ElementsMatch(t, []string{"rent-2", "rent-4"}, ids(rentals.Records))
}

func TestDispatchClientModeWithoutQuerySkipsResolver(t *testing.T) {
	store := seedStore()
	directory := &countingDirectory{ClientDirectory: store}
	dispatcher := NewDispatcher(NewProviders(store, SourceOptions{}), NewDirectoryResolver(directory), nil)

	results := dispatcher.Dispatch(context.Background(), clientFilter("C1"))
	total := 0
	for _, res := range results {
		require.NoError(t, res.Err)
		total += len(res.Records)
	}
	require.Equal(t, 3, total)
	require.Zero(t, directory.calls())
}

func TestDispatchClientModeQueryOnlyResolvesUnmatched(t *testing.T) {
	store := seedStore()
	directory := &countingDirectory{ClientDirectory: store}
	dispatcher := NewDispatcher(NewProviders(store, SourceOptions{}), NewDirectoryResolver(directory), nil)

	f := clientFilter("C1")
	f.Query = "park"
	results := dispatcher.Dispatch(context.Background(), f)

	total := 0
	for _, res := range results {
		total += len(res.Records)
	}
	require.Equal(t, 3, total, "every record matches through the client's name")
	for _, q := range directory.queries {
		require.Equal(t, "park", q)
	}
}

func TestDispatchResolverFailureFailsOnlyThatSource(t *testing.T) {
	store := seedStore()
	directory := &countingDirectory{ClientDirectory: store, err: errStoreDown}
	providers := []Provider{
		NewRentalSource(store, SourceOptions{}),
		&stubProvider{name: TypeConsultation, records: []ActivityRecord{{ID: "x", Type: TypeConsultation, textMatched: true}}},
	}
	dispatcher := NewDispatcher(providers, NewDirectoryResolver(directory), nil)

	f := clientFilter("C1")
	f.Query = "nothing-matches"
	results := dispatcher.Dispatch(context.Background(), f)

	require.ErrorIs(t, results[0].Err, ErrSourceUnavailable)
	var serr *SourceError
	require.ErrorAs(t, results[0].Err, &serr)
	require.Equal(t, TypeRental, serr.Source)
	require.NoError(t, results[1].Err)
	require.Equal(t, []string{"x"}, ids(results[1].Records))
}

func TestDispatchDropsRecordsOutsidePartition(t *testing.T) {
	store := seedStore()
	rogue := &stubProvider{name: TypeRental, records: []ActivityRecord{
		rec("ok", TypeRental, "2024-01-01"),
		rec("wrong", TypeConsultation, "2024-01-01"),
	}}
	dispatcher := NewDispatcher([]Provider{rogue}, NewDirectoryResolver(store), nil)

	results := dispatcher.Dispatch(context.Background(), clientFilter("C1"))
	require.Equal(t, []string{"ok"}, ids(results[0].Records))
}

func TestDispatchFlagsTruncatedSources(t *testing.T) {
	store := seedStore()
	dispatcher := NewDispatcher(NewProviders(store, SourceOptions{RowLimit: 1}), NewDirectoryResolver(store), nil)

	results := dispatcher.Dispatch(context.Background(), clientFilter("C1"))
	truncated := map[string]bool{}
	for _, res := range results {
		truncated[res.Source] = res.Truncated
	}
	require.True(t, truncated[TypeConsultation])
	require.True(t, truncated[TypeRental])
	require.False(t, truncated[TypeAssessment])
}

func TestDispatchRecoversProviderPanic(t *testing.T) {
	store := seedStore()
	dispatcher := NewDispatcher([]Provider{panicProvider{}}, NewDirectoryResolver(store), nil)

	results := dispatcher.Dispatch(context.Background(), searchFilter(""))
	require.ErrorIs(t, results[0].Err, ErrSourceUnavailable)
}

type panicProvider struct{}

func (panicProvider) Name() string                                            { return TypeAssessment }
func (panicProvider) Serves(string) bool                                      { return true }
func (panicProvider) Fetch(context.Context, Filter) ([]ActivityRecord, error) { panic("boom") }
