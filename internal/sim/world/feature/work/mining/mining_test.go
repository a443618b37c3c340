package mining

import "testing"

func TestToolFamilyOf(t *testing.T) {
	if got := ToolFamilyOf("DIAMOND_PICKAXE"); got != ToolFamilyPickaxe {
		t.Fatalf("expected pickaxe family for DIAMOND_PICKAXE, got %v", got)
	}
	if got := ToolFamilyOf("IRON_AXE"); got != ToolFamilyAxe {
		t.Fatalf("expected axe family for IRON_AXE, got %v", got)
	}
	if got := ToolFamilyOf("WOODEN_HOE"); got != ToolFamilyHoe {
		t.Fatalf("expected hoe family for WOODEN_HOE, got %v", got)
	}
	if got := ToolFamilyOf("STICK"); got != ToolFamilyNone {
		t.Fatalf("expected no family for STICK, got %v", got)
	}
}

func TestCanHarvest(t *testing.T) {
	if !CanHarvest("STONE_PICKAXE", 2) {
		t.Fatalf("stone pickaxe should harvest tier 2")
	}
	if CanHarvest("WOODEN_PICKAXE", 2) {
		t.Fatalf("wooden pickaxe should not harvest tier 2")
	}
	if CanHarvest("NETHERITE_AXE", 1) {
		t.Fatalf("axes never harvest ores")
	}
	if CanHarvest("PLASTIC_PICKAXE", 1) {
		t.Fatalf("unknown material must be tier 0")
	}
}

func TestFortuneMultiplier(t *testing.T) {
	if got := FortuneMultiplier(0, 12345); got != 1 {
		t.Fatalf("no fortune: got=%d want=1", got)
	}
	for roll := uint64(0); roll < 50; roll++ {
		got := FortuneMultiplier(3, roll)
		if got < 1 || got > 4 {
			t.Fatalf("fortune 3 roll=%d: got=%d want 1..4", roll, got)
		}
	}
	if got := FortuneMultiplier(3, 3); got != 3 {
		t.Fatalf("fortune 3 roll=3: got=%d want=3", got)
	}
}
