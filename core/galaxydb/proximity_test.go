package galaxydb

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestWithinRadiusReturnsSystemsAndDistances(t *testing.T) {
	db, path := setupTestDB(t)
	defer cleanupDB(db, path)

	ss := NewSystemStore(db)
	for _, sys := range []*StarSystem{
		testSystem(1, "Alpha", 0, 0, 0),
		testSystem(2, "Beta", 10, 10, 10),
	} {
		if err := ss.Upsert(sys); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	qs := NewProximityStore(db)
	got, err := qs.WithinRadius(r3.Vec{}, 20)
	if err != nil {
		t.Fatalf("WithinRadius: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	byName := make(map[string]ProximityResult, len(got))
	for _, res := range got {
		byName[res.System.Name] = res
	}

	if res, ok := byName["Alpha"]; !ok {
		t.Error("Alpha missing from results")
	} else if res.Distance != 0 {
		t.Errorf("Alpha distance = %v, want 0", res.Distance)
	}

	if res, ok := byName["Beta"]; !ok {
		t.Error("Beta missing from results")
	} else if math.Abs(res.Distance-math.Sqrt(300)) > 1e-9 {
		t.Errorf("Beta distance = %v, want %v", res.Distance, math.Sqrt(300))
	}
}

func TestWithinRadiusExcludesBeyondRadius(t *testing.T) {
	db, path := setupTestDB(t)
	defer cleanupDB(db, path)

	ss := NewSystemStore(db)
	for _, sys := range []*StarSystem{
		testSystem(1, "Alpha", 0, 0, 0),
		testSystem(2, "Beta", 10, 10, 10),
	} {
		if err := ss.Upsert(sys); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	qs := NewProximityStore(db)
	got, err := qs.WithinRadius(r3.Vec{}, 5)
	if err != nil {
		t.Fatalf("WithinRadius: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].System.Name != "Alpha" {
		t.Errorf("got %s, want Alpha", got[0].System.Name)
	}
}

func TestWithinRadiusBoundaryIsInclusive(t *testing.T) {
	db, path := setupTestDB(t)
	defer cleanupDB(db, path)

	ss := NewSystemStore(db)
	if err := ss.Upsert(testSystem(1, "Edge", 10, 0, 0)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	qs := NewProximityStore(db)
	got, err := qs.WithinRadius(r3.Vec{}, 10)
	if err != nil {
		t.Fatalf("WithinRadius: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("system at exactly radius distance excluded, len = %d", len(got))
	}
	if got[0].Distance != 10 {
		t.Errorf("Distance = %v, want 10", got[0].Distance)
	}
}

func TestWithinRadiusFiltersCuboidCorners(t *testing.T) {
	db, path := setupTestDB(t)
	defer cleanupDB(db, path)

	// (24, 24, 24) sits inside the coarse bucket range for radius 25 around
	// the origin but well outside the sphere itself.
	ss := NewSystemStore(db)
	if err := ss.Upsert(testSystem(1, "Corner", 24, 24, 24)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	qs := NewProximityStore(db)
	got, err := qs.WithinRadius(r3.Vec{}, 25)
	if err != nil {
		t.Fatalf("WithinRadius: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("corner candidate leaked through exact filter: %v", got)
	}
}

func TestWithinRadiusSpansBucketBoundaries(t *testing.T) {
	db, path := setupTestDB(t)
	defer cleanupDB(db, path)

	ss := NewSystemStore(db)
	for _, sys := range []*StarSystem{
		testSystem(1, "BelowEdge", 24.9, 0, 0),
		testSystem(2, "OnEdge", 25.0, 0, 0),
		testSystem(3, "AboveEdge", 25.1, 0, 0),
		testSystem(4, "NegSide", -24.9, 0, 0),
	} {
		if err := ss.Upsert(sys); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	qs := NewProximityStore(db)
	got, err := qs.WithinRadius(r3.Vec{X: 25, Y: 0, Z: 0}, 1)
	if err != nil {
		t.Fatalf("WithinRadius: %v", err)
	}

	names := make(map[string]bool, len(got))
	for _, res := range got {
		names[res.System.Name] = true
	}
	for _, want := range []string{"BelowEdge", "OnEdge", "AboveEdge"} {
		if !names[want] {
			t.Errorf("%s missing despite lying across bucket boundary", want)
		}
	}
	if names["NegSide"] {
		t.Error("NegSide included outside radius")
	}
}

func TestWithinRadiusNegativeCoordinates(t *testing.T) {
	db, path := setupTestDB(t)
	defer cleanupDB(db, path)

	ss := NewSystemStore(db)
	if err := ss.Upsert(testSystem(1, "Southpaw", -30, -30, -30)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	qs := NewProximityStore(db)
	got, err := qs.WithinRadius(r3.Vec{X: -30, Y: -30, Z: -30}, 5)
	if err != nil {
		t.Fatalf("WithinRadius: %v", err)
	}
	if len(got) != 1 || got[0].System.Name != "Southpaw" {
		t.Fatalf("got %v, want Southpaw", got)
	}
}

func TestWithinRadiusAttachesPopulation(t *testing.T) {
	db, path := setupTestDB(t)
	defer cleanupDB(db, path)

	ss := NewSystemStore(db)
	ps := NewPopulationStore(db)

	if err := ss.Upsert(testSystem(1, "Inhabited", 0, 0, 0)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := ss.Upsert(testSystem(2, "Barren", 1, 1, 1)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := ps.Upsert(testPopulation(1, 5000, "Settlers")); err != nil {
		t.Fatalf("Upsert population: %v", err)
	}

	qs := NewProximityStore(db)
	got, err := qs.WithinRadius(r3.Vec{}, 10)
	if err != nil {
		t.Fatalf("WithinRadius: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, res := range got {
		switch res.System.Name {
		case "Inhabited":
			if res.Population == nil {
				t.Error("Inhabited missing population record")
			} else if res.Population.ControllingFaction != "Settlers" {
				t.Errorf("faction = %s, want Settlers", res.Population.ControllingFaction)
			}
		case "Barren":
			if res.Population != nil {
				t.Errorf("Barren should have nil population, got %v", res.Population)
			}
		default:
			t.Errorf("unexpected system %s", res.System.Name)
		}
	}
}

func TestWithinRadiusZero(t *testing.T) {
	db, path := setupTestDB(t)
	defer cleanupDB(db, path)

	ss := NewSystemStore(db)
	if err := ss.Upsert(testSystem(1, "Here", 5, 5, 5)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := ss.Upsert(testSystem(2, "There", 6, 5, 5)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	qs := NewProximityStore(db)
	got, err := qs.WithinRadius(r3.Vec{X: 5, Y: 5, Z: 5}, 0)
	if err != nil {
		t.Fatalf("WithinRadius: %v", err)
	}
	if len(got) != 1 || got[0].System.Name != "Here" {
		t.Fatalf("zero radius should match only the exact point, got %v", got)
	}
}

func TestWithinRadiusNegativeRadius(t *testing.T) {
	db, path := setupTestDB(t)
	defer cleanupDB(db, path)

	qs := NewProximityStore(db)
	if _, err := qs.WithinRadius(r3.Vec{}, -1); err == nil {
		t.Error("negative radius should error")
	}
}

func TestWithinRadiusEmptyStore(t *testing.T) {
	db, path := setupTestDB(t)
	defer cleanupDB(db, path)

	qs := NewProximityStore(db)
	got, err := qs.WithinRadius(r3.Vec{}, 100)
	if err != nil {
		t.Fatalf("WithinRadius: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}
