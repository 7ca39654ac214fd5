package game

import "testing"

const skeleton = "Metadata/Monsters/Skeletons/PlayerSummoned/SkeletonClericPlayerSummoned_"

func TestSelectTargetPicksClosestMatch(t *testing.T) {
	s := Snapshot{Monsters: []Entity{
		{ID: 1, Path: skeleton + "1", IsAlive: true, Distance: 40},
		{ID: 2, Path: "Metadata/Monsters/Zombie", IsAlive: true, Distance: 5},
		{ID: 3, Path: skeleton + "2", IsAlive: true, Distance: 12},
		{ID: 4, Path: skeleton + "3", IsAlive: false, Distance: 3},
		{ID: 5, Path: skeleton + "4", IsAlive: true, Distance: 100},
	}}

	got, found := SelectTarget(s, skeleton, 100)
	if !found {
		t.Fatalf("expected a target")
	}
	if got.ID != 3 {
		t.Fatalf("expected entity 3, got %d", got.ID)
	}

	again, _ := SelectTarget(s, skeleton, 100)
	if again.ID != got.ID {
		t.Fatalf("selection is not deterministic: %d then %d", got.ID, again.ID)
	}
}

func TestSelectTargetNone(t *testing.T) {
	tests := map[string]Snapshot{
		"empty": {},
		"out of range": {Monsters: []Entity{
			{ID: 1, Path: skeleton, IsAlive: true, Distance: 100},
			{ID: 2, Path: skeleton, IsAlive: true, Distance: 150},
		}},
		"dead only":  {Monsters: []Entity{{ID: 1, Path: skeleton, IsAlive: false, Distance: 1}}},
		"wrong path": {Monsters: []Entity{{ID: 1, Path: "Metadata/Monsters/Other", IsAlive: true, Distance: 1}}},
	}

	for name, s := range tests {
		if _, found := SelectTarget(s, skeleton, 100); found {
			t.Errorf("%s: expected no target", name)
		}
	}
}

func TestSelectTargetTieKeepsSnapshotOrder(t *testing.T) {
	s := Snapshot{Monsters: []Entity{
		{ID: 7, Path: skeleton, IsAlive: true, Distance: 10},
		{ID: 8, Path: skeleton, IsAlive: true, Distance: 10},
	}}

	got, _ := SelectTarget(s, skeleton, 100)
	if got.ID != 7 {
		t.Fatalf("expected first entity on tie, got %d", got.ID)
	}
}

func TestHostileWithin(t *testing.T) {
	tests := []struct {
		name   string
		entity Entity
		want   bool
	}{
		{"at radius", Entity{IsHostile: true, IsAlive: true, Distance: 60}, true},
		{"inside", Entity{IsHostile: true, IsAlive: true, Distance: 10}, true},
		{"outside", Entity{IsHostile: true, IsAlive: true, Distance: 60.5}, false},
		{"friendly", Entity{IsHostile: false, IsAlive: true, Distance: 1}, false},
		{"dead", Entity{IsHostile: true, IsAlive: false, Distance: 1}, false},
		{"hidden", Entity{IsHostile: true, IsAlive: true, IsHidden: true, Distance: 1}, false},
	}

	for _, tt := range tests {
		s := Snapshot{Monsters: []Entity{tt.entity}}
		if got := HostileWithin(s, 60); got != tt.want {
			t.Errorf("%s: HostileWithin = %v, want %v", tt.name, got, tt.want)
		}
	}
}
