package mining

import "strings"

type ToolFamily int

const (
	ToolFamilyNone ToolFamily = iota
	ToolFamilyPickaxe
	ToolFamilyAxe
	ToolFamilyShovel
	ToolFamilyHoe
)

func ToolFamilyOf(toolType string) ToolFamily {
	switch {
	case strings.HasSuffix(toolType, "_PICKAXE"):
		return ToolFamilyPickaxe
	case strings.HasSuffix(toolType, "_AXE"):
		return ToolFamilyAxe
	case strings.HasSuffix(toolType, "_SHOVEL"):
		return ToolFamilyShovel
	case strings.HasSuffix(toolType, "_HOE"):
		return ToolFamilyHoe
	default:
		return ToolFamilyNone
	}
}

// ToolTier returns the harvest tier of a tool by its material prefix.
// Unknown materials are tier 0 and harvest nothing that requires a tier.
func ToolTier(toolType string) int {
	i := strings.LastIndexByte(toolType, '_')
	if i <= 0 {
		return 0
	}
	switch toolType[:i] {
	case "WOODEN", "GOLDEN":
		return 1
	case "STONE":
		return 2
	case "IRON":
		return 3
	case "DIAMOND":
		return 4
	case "NETHERITE":
		return 5
	default:
		return 0
	}
}

// CanHarvest reports whether a pickaxe of toolType yields drops from an ore
// requiring requiredTier.
func CanHarvest(toolType string, requiredTier int) bool {
	if ToolFamilyOf(toolType) != ToolFamilyPickaxe {
		return false
	}
	return ToolTier(toolType) >= requiredTier
}

// FortuneMultiplier maps a uniform roll to the ore drop multiplier for a
// fortune level: one of 1..fortune+1, with 1 weighted twice.
func FortuneMultiplier(fortune int, roll uint64) int {
	if fortune <= 0 {
		return 1
	}
	bonus := int(roll%uint64(fortune+2)) - 1
	if bonus < 0 {
		bonus = 0
	}
	return bonus + 1
}
