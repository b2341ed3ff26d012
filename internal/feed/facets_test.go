package feed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregateCollapsesScheduleKinds(t *testing.T) {
	records := []ActivityRecord{
		rec("c1", TypeConsultation, "2024-01-01"),
		rec("c2", TypeConsultation, "2024-01-02"),
		rec("s1", ScheduleType("visit"), "2024-01-03"),
		rec("s2", ScheduleType("fitting"), "2024-01-04"),
		rec("r1", TypeRental, "2024-01-05"),
	}

	grouped := Aggregate(records)
	require.Equal(t, map[string]int{TypeConsultation: 2, TypeSchedule: 2, TypeRental: 1}, grouped)

	sum := 0
	for _, n := range grouped {
		sum += n
	}
	require.Equal(t, len(records), sum)
}

func TestBaseType(t *testing.T) {
	require.Equal(t, TypeSchedule, BaseType("schedule_delivery"))
	require.Equal(t, TypeSchedule, BaseType(TypeSchedule))
	require.Equal(t, TypeRental, BaseType(TypeRental))
}
