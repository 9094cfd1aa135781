package galaxydb

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// GridCellSize is the edge length in light years of one spatial grid cell.
// Bucket coordinates are always derived from system coordinates with this
// cell size; they are never stored independently of it.
const GridCellSize = 25.0

// AnyFaction is the wildcard faction name accepted by faction-scoped
// lookups. It matches every system whose controlling faction is non-empty.
const AnyFaction = "ANY"

// IsAnyFaction reports whether name is the faction wildcard.
func IsAnyFaction(name string) bool {
	return name == AnyFaction
}

// Bucket identifies the grid cell a system's coordinates fall into.
type Bucket struct {
	X int64
	Y int64
	Z int64
}

// BucketFor computes the grid bucket for a point in space. Floor division
// keeps negative coordinates in the correct cell.
func BucketFor(p r3.Vec) Bucket {
	return Bucket{
		X: int64(math.Floor(p.X / GridCellSize)),
		Y: int64(math.Floor(p.Y / GridCellSize)),
		Z: int64(math.Floor(p.Z / GridCellSize)),
	}
}

// BucketRange returns the inclusive bucket cuboid covering the axis-aligned
// box [center-radius, center+radius]. The cuboid over-covers: callers must
// post-filter by exact distance.
func BucketRange(center r3.Vec, radius float64) (min, max Bucket) {
	min = BucketFor(r3.Vec{X: center.X - radius, Y: center.Y - radius, Z: center.Z - radius})
	max = BucketFor(r3.Vec{X: center.X + radius, Y: center.Y + radius, Z: center.Z + radius})
	return min, max
}

// StarSystem is one catalogued star system. ID64 is globally unique.
// Names are treated as a reliable lookup key but are not guaranteed unique.
type StarSystem struct {
	ID64     int64
	Name     string
	X        float64
	Y        float64
	Z        float64
	MainStar string
}

// Coords returns the system's position as a vector.
func (s *StarSystem) Coords() r3.Vec {
	return r3.Vec{X: s.X, Y: s.Y, Z: s.Z}
}

// Bucket returns the grid bucket derived from the system's coordinates.
func (s *StarSystem) Bucket() Bucket {
	return BucketFor(s.Coords())
}

// DistanceTo returns the Euclidean distance from the system to a point.
func (s *StarSystem) DistanceTo(p r3.Vec) float64 {
	return math.Sqrt(r3.Norm2(r3.Sub(s.Coords(), p)))
}

// PopulationRecord is the optional socio-economic extension of a system,
// sharing the id64 namespace. An empty ControllingFaction marks the system
// as unclaimed; that is a meaningful value, not missing data.
type PopulationRecord struct {
	ID64               int64
	Population         int64
	Security           string
	ControllingFaction string
	PrimaryEconomy     string
	SecondaryEconomy   string
}

// Unclaimed reports whether a population record describes an unowned
// system. Both a missing record and an empty controlling faction count.
func Unclaimed(p *PopulationRecord) bool {
	return p == nil || p.ControllingFaction == ""
}

// FactionCount pairs a faction name with the number of systems it controls.
type FactionCount struct {
	Name    string
	Systems int64
}

// SystemWithPopulation pairs a system with its population record, which may
// be nil when the system has no stored socio-economic data.
type SystemWithPopulation struct {
	System     *StarSystem
	Population *PopulationRecord
}

// ProximityResult is one hit from a radius query: the system, its population
// record if any, and the exact Euclidean distance to the query center.
type ProximityResult struct {
	System     *StarSystem
	Population *PopulationRecord
	Distance   float64
}
