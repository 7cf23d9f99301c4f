package model

import (
	"fmt"
	"strings"
)

// Region is a geographic tag. The ordinal is both the registry slot index
// and the wire value.
type Region uint8

const (
	Northeast Region = 0
	Southeast Region = 1
	Midwest   Region = 2
	Southwest Region = 3
	West      Region = 4
)

// RegionCount is the size of the closed region enumeration.
const RegionCount = 5

// RegionFromByte resolves a wire value. Unknown tags return false.
func RegionFromByte(b uint8) (Region, bool) {
	if b >= RegionCount {
		return 0, false
	}
	return Region(b), true
}

// Valid reports whether r is one of the five known tags.
func (r Region) Valid() bool {
	return r < RegionCount
}

func (r Region) String() string {
	switch r {
	case Northeast:
		return "Northeast"
	case Southeast:
		return "Southeast"
	case Midwest:
		return "Midwest"
	case Southwest:
		return "Southwest"
	case West:
		return "West"
	default:
		return fmt.Sprintf("Region(%d)", uint8(r))
	}
}

// ParseRegion accepts a region name (case-insensitive) or its ordinal.
func ParseRegion(s string) (Region, error) {
	s = strings.TrimSpace(s)
	for r := Region(0); r < RegionCount; r++ {
		if strings.EqualFold(s, r.String()) {
			return r, nil
		}
	}
	if len(s) == 1 && s[0] >= '0' && s[0] < '0'+RegionCount {
		return Region(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("unknown region %q", s)
}

// Regions returns all regions in ordinal order.
func Regions() []Region {
	out := make([]Region, RegionCount)
	for i := range out {
		out[i] = Region(i)
	}
	return out
}
