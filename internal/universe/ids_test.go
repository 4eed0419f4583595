package universe

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewRegionID_Bounds(t *testing.T) {
	cases := []struct {
		value uint32
		ok    bool
	}{
		{9_999_999, false},
		{10_000_000, true},
		{19_999_999, true},
		{20_000_000, false},
	}
	for _, tc := range cases {
		id, err := NewRegionID(tc.value)
		if tc.ok && err != nil {
			t.Errorf("NewRegionID(%d) unexpected error: %v", tc.value, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("NewRegionID(%d) accepted out-of-range value", tc.value)
		}
		if tc.ok && uint32(id) != tc.value {
			t.Errorf("NewRegionID(%d) = %d", tc.value, id)
		}
	}
}

func TestNewConstellationID_Bounds(t *testing.T) {
	for _, v := range []uint32{20_000_000, 29_999_999} {
		if _, err := NewConstellationID(v); err != nil {
			t.Errorf("NewConstellationID(%d) unexpected error: %v", v, err)
		}
	}
	for _, v := range []uint32{19_999_999, 30_000_000} {
		if _, err := NewConstellationID(v); err == nil {
			t.Errorf("NewConstellationID(%d) accepted out-of-range value", v)
		}
	}
}

func TestNewSystemID_Bounds(t *testing.T) {
	for _, v := range []uint32{30_000_000, 39_999_999} {
		if _, err := NewSystemID(v); err != nil {
			t.Errorf("NewSystemID(%d) unexpected error: %v", v, err)
		}
	}
	for _, v := range []uint32{29_999_999, 40_000_000} {
		if _, err := NewSystemID(v); err == nil {
			t.Errorf("NewSystemID(%d) accepted out-of-range value", v)
		}
	}
}

func TestNewStationID_Bounds(t *testing.T) {
	for _, v := range []uint64{60_000_000, 63_999_999} {
		if _, err := NewStationID(v); err != nil {
			t.Errorf("NewStationID(%d) unexpected error: %v", v, err)
		}
	}
	for _, v := range []uint64{59_999_999, 64_000_000, 1_042_508_032_148} {
		if _, err := NewStationID(v); err == nil {
			t.Errorf("NewStationID(%d) accepted out-of-range value", v)
		}
	}
}

func TestNewStructureID_Bounds(t *testing.T) {
	if _, err := NewStructureID(63_999_999); err == nil {
		t.Error("NewStructureID(63999999) accepted station-range value")
	}
	if _, err := NewStructureID(64_000_000); err != nil {
		t.Errorf("NewStructureID(64000000) unexpected error: %v", err)
	}
	if _, err := NewStructureID(1_042_508_032_148); err != nil {
		t.Errorf("NewStructureID(player structure) unexpected error: %v", err)
	}
}

func TestInvalidIDError_Details(t *testing.T) {
	_, err := NewRegionID(5)
	var idErr *InvalidIDError
	if !errors.As(err, &idErr) {
		t.Fatalf("error type = %T, want *InvalidIDError", err)
	}
	if idErr.Value != 5 || idErr.Min != 10_000_000 || idErr.Max != 20_000_000 {
		t.Errorf("InvalidIDError = %+v", idErr)
	}
}

func TestIsStructureLocation(t *testing.T) {
	if IsStructureLocation(63_999_999) {
		t.Error("station ID reported as structure")
	}
	if !IsStructureLocation(64_000_000) {
		t.Error("64M not reported as structure")
	}
}

func TestRegionID_UnmarshalJSON(t *testing.T) {
	var id RegionID
	if err := json.Unmarshal([]byte("10000002"), &id); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if id != 10000002 {
		t.Errorf("id = %d", id)
	}
	if err := json.Unmarshal([]byte("42"), &id); err == nil {
		t.Error("Unmarshal accepted out-of-range region id")
	}
}
