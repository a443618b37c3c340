package model

const Air = "AIR"

// Cell is the content of a single grid position. Age is only meaningful for
// crops (0 = freshly planted).
type Cell struct {
	Type string
	Age  int
}

func (c Cell) IsAir() bool { return c.Type == "" || c.Type == Air }
