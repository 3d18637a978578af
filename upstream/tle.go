// Copyright (C) 2026 NTN Stack contributors.
// See LICENSE for copying information.

package upstream

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// tleFiles are concatenated, in this order, into the run manifest checksum.
var tleFiles = []string{"starlink.txt", "oneweb.txt"}

// TLEChecksum returns the SHA-256 over the concatenated TLE source files.
// Missing files contribute nothing; if every file is missing the checksum
// is empty, which the manifest records as "no TLE sources".
func (loader *Loader) TLEChecksum() (string, error) {
	hasher := sha256.New()
	found := false
	for _, name := range tleFiles {
		raw, err := os.ReadFile(filepath.Join(loader.config.TLEDir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", Error.Wrap(err)
		}
		_, _ = hasher.Write(raw)
		found = true
	}
	if !found {
		return "", nil
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// TotalSatellites sums loaded satellites across constellations.
func (r *Report) TotalSatellites() int {
	total := 0
	for _, c := range r.Constellations {
		total += c.SatelliteCount
	}
	return total
}

// HasBoth reports whether both modeled constellations produced satellites.
func (r *Report) HasBoth() bool {
	sl, ok1 := r.Constellations["starlink"]
	ow, ok2 := r.Constellations["oneweb"]
	return ok1 && ok2 && sl.SatelliteCount > 0 && ow.SatelliteCount > 0
}
