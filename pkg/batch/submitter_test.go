package batch

import (
	"testing"

	"github.com/walmagochi/gateway/pkg/database"
)

func TestGroupByDevice_PreservesOrderWithinDevice(t *testing.T) {
	records := []*database.SubmissionRecord{
		{ID: 1, DeviceID: "a"},
		{ID: 2, DeviceID: "b"},
		{ID: 3, DeviceID: "a"},
		{ID: 4, DeviceID: "a"},
		{ID: 5, DeviceID: "b"},
	}

	grouped := groupByDevice(records)

	if len(grouped) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(grouped))
	}

	wantA := []int64{1, 3, 4}
	gotA := grouped["a"]
	if len(gotA) != len(wantA) {
		t.Fatalf("device a: expected %d records, got %d", len(wantA), len(gotA))
	}
	for i, rec := range gotA {
		if rec.ID != wantA[i] {
			t.Fatalf("device a: receive-time order not preserved at index %d: want %d got %d", i, wantA[i], rec.ID)
		}
	}

	wantB := []int64{2, 5}
	gotB := grouped["b"]
	if len(gotB) != len(wantB) {
		t.Fatalf("device b: expected %d records, got %d", len(wantB), len(gotB))
	}
	for i, rec := range gotB {
		if rec.ID != wantB[i] {
			t.Fatalf("device b: receive-time order not preserved at index %d: want %d got %d", i, wantB[i], rec.ID)
		}
	}
}

func TestGroupByDevice_Empty(t *testing.T) {
	grouped := groupByDevice(nil)
	if len(grouped) != 0 {
		t.Fatalf("expected empty map for empty input, got %d entries", len(grouped))
	}
}
