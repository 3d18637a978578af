// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package ntn

// SatelliteID indexes a satellite inside an Arena.
type SatelliteID uint32

// Arena is flat storage for every satellite of a pipeline run. Satellites are
// appended once during upstream load and referenced by SatelliteID afterwards,
// which keeps candidate sets compact bitsets instead of object graphs.
type Arena struct {
	satellites []Satellite
	byName     map[string]SatelliteID
}

// NewArena creates an empty arena with capacity for n satellites.
func NewArena(n int) *Arena {
	return &Arena{
		satellites: make([]Satellite, 0, n),
		byName:     make(map[string]SatelliteID, n),
	}
}

// Add appends a satellite and returns its id. Duplicate names are rejected.
func (a *Arena) Add(sat Satellite) (SatelliteID, error) {
	if _, exists := a.byName[sat.Name]; exists {
		return 0, Error.New("duplicate satellite %q", sat.Name)
	}
	id := SatelliteID(len(a.satellites))
	a.satellites = append(a.satellites, sat)
	a.byName[sat.Name] = id
	return id, nil
}

// Get returns the satellite for an id. The pointer stays valid for the
// lifetime of the arena; callers must not mutate through it.
func (a *Arena) Get(id SatelliteID) *Satellite {
	return &a.satellites[id]
}

// Lookup resolves a satellite name to its id.
func (a *Arena) Lookup(name string) (SatelliteID, bool) {
	id, ok := a.byName[name]
	return id, ok
}

// Len returns the number of satellites stored.
func (a *Arena) Len() int { return len(a.satellites) }

// All returns every id in insertion order.
func (a *Arena) All() []SatelliteID {
	ids := make([]SatelliteID, len(a.satellites))
	for i := range ids {
		ids[i] = SatelliteID(i)
	}
	return ids
}

// ByConstellation returns the ids belonging to one constellation, in
// insertion order.
func (a *Arena) ByConstellation(c Constellation) []SatelliteID {
	var ids []SatelliteID
	for i := range a.satellites {
		if a.satellites[i].Constellation == c {
			ids = append(ids, SatelliteID(i))
		}
	}
	return ids
}

// CountByConstellation tallies satellites per constellation.
func (a *Arena) CountByConstellation() map[Constellation]int {
	counts := make(map[Constellation]int)
	for i := range a.satellites {
		counts[a.satellites[i].Constellation]++
	}
	return counts
}
