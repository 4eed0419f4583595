package universe

import (
	"encoding/json"
	"fmt"
)

// InvalidIDError reports an identifier outside its accepted range.
type InvalidIDError struct {
	Value uint64
	Min   uint64
	Max   uint64 // exclusive; 0 means unbounded
}

func (e *InvalidIDError) Error() string {
	if e.Max == 0 {
		return fmt.Sprintf("value %d is outside the valid range [%d, max)", e.Value, e.Min)
	}
	return fmt.Sprintf("value %d is outside the valid range [%d, %d)", e.Value, e.Min, e.Max)
}

// EVE identifier ranges. Location IDs partition by magnitude: NPC stations
// live in [60M, 64M) and anything at or above 64M is a player structure.
const (
	regionIDMin        = 10_000_000
	regionIDMax        = 20_000_000
	constellationIDMin = 20_000_000
	constellationIDMax = 30_000_000
	systemIDMin        = 30_000_000
	systemIDMax        = 40_000_000
	stationIDMin       = 60_000_000
	stationIDMax       = 64_000_000
	structureIDMin     = 64_000_000
)

// RegionID identifies an EVE region.
type RegionID uint32

// NewRegionID validates v into the region ID range.
func NewRegionID(v uint32) (RegionID, error) {
	if v < regionIDMin || v >= regionIDMax {
		return 0, &InvalidIDError{Value: uint64(v), Min: regionIDMin, Max: regionIDMax}
	}
	return RegionID(v), nil
}

func (id *RegionID) UnmarshalJSON(data []byte) error {
	var v uint32
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	checked, err := NewRegionID(v)
	if err != nil {
		return err
	}
	*id = checked
	return nil
}

// ConstellationID identifies a constellation.
type ConstellationID uint32

// NewConstellationID validates v into the constellation ID range.
func NewConstellationID(v uint32) (ConstellationID, error) {
	if v < constellationIDMin || v >= constellationIDMax {
		return 0, &InvalidIDError{Value: uint64(v), Min: constellationIDMin, Max: constellationIDMax}
	}
	return ConstellationID(v), nil
}

func (id *ConstellationID) UnmarshalJSON(data []byte) error {
	var v uint32
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	checked, err := NewConstellationID(v)
	if err != nil {
		return err
	}
	*id = checked
	return nil
}

// SystemID identifies a solar system.
type SystemID uint32

// NewSystemID validates v into the system ID range.
func NewSystemID(v uint32) (SystemID, error) {
	if v < systemIDMin || v >= systemIDMax {
		return 0, &InvalidIDError{Value: uint64(v), Min: systemIDMin, Max: systemIDMax}
	}
	return SystemID(v), nil
}

func (id *SystemID) UnmarshalJSON(data []byte) error {
	var v uint32
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	checked, err := NewSystemID(v)
	if err != nil {
		return err
	}
	*id = checked
	return nil
}

// StationID identifies an NPC station. Player structures are outside this
// range and are handled separately (see StructureID).
type StationID uint64

// NewStationID validates v into the NPC station ID range.
func NewStationID(v uint64) (StationID, error) {
	if v < stationIDMin || v >= stationIDMax {
		return 0, &InvalidIDError{Value: v, Min: stationIDMin, Max: stationIDMax}
	}
	return StationID(v), nil
}

func (id *StationID) UnmarshalJSON(data []byte) error {
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	checked, err := NewStationID(v)
	if err != nil {
		return err
	}
	*id = checked
	return nil
}

// IsStructureLocation reports whether a raw location ID falls in the player
// structure range rather than the NPC station range.
func IsStructureLocation(v uint64) bool {
	return v >= structureIDMin
}

// StructureID identifies a player-owned structure (location IDs ≥ 64M).
type StructureID uint64

// NewStructureID validates v into the structure ID range.
func NewStructureID(v uint64) (StructureID, error) {
	if v < structureIDMin {
		return 0, &InvalidIDError{Value: v, Min: structureIDMin}
	}
	return StructureID(v), nil
}

// TypeID identifies an item type. Any 32-bit value is valid.
type TypeID uint32
