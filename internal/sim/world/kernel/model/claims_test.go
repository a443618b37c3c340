package model

import "testing"

func TestChunkKeyOf_NegativeCoordsFloor(t *testing.T) {
	cases := []struct {
		pos  Vec3i
		x, z int
	}{
		{Vec3i{X: 0, Y: 64, Z: 0}, 0, 0},
		{Vec3i{X: 15, Y: 0, Z: 16}, 0, 1},
		{Vec3i{X: -1, Y: 0, Z: -16}, -1, -1},
		{Vec3i{X: -17, Y: 0, Z: 31}, -2, 1},
	}
	for _, c := range cases {
		k := ChunkKeyOf("world", c.pos)
		if k.X != c.x || k.Z != c.z {
			t.Fatalf("ChunkKeyOf(%v): got=(%d,%d) want=(%d,%d)", c.pos, k.X, k.Z, c.x, c.z)
		}
	}
}

func TestChunkKey_StringParse(t *testing.T) {
	k := ChunkKey{World: "world_nether", X: -4, Z: 12}
	if k.String() != "world_nether:-4:12" {
		t.Fatalf("string: got=%q", k.String())
	}
	back, err := ParseChunkKey(k.String())
	if err != nil || back != k {
		t.Fatalf("parse: got=%v err=%v want=%v", back, err, k)
	}
	for _, bad := range []string{"", "world", "world:1", ":1:2", "world:a:2", "world:1:2:3"} {
		if _, err := ParseChunkKey(bad); err == nil {
			t.Fatalf("ParseChunkKey(%q) accepted", bad)
		}
	}
}

func TestTool_Families(t *testing.T) {
	if !(Tool{Type: "DIAMOND_AXE"}).IsAxe() || (Tool{Type: "DIAMOND_PICKAXE"}).IsAxe() {
		t.Fatalf("axe detection")
	}
	if !(Tool{Type: "IRON_PICKAXE"}).IsPickaxe() || !(Tool{Type: "STONE_HOE"}).IsHoe() {
		t.Fatalf("pickaxe/hoe detection")
	}
}
