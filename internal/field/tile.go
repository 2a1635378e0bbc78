package field

// Tile is the half-open rectangle [X0,X1) x [Y0,Y1) stepped by one worker.
type Tile struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Empty reports whether the tile covers no cells.
func (t Tile) Empty() bool {
	return t.X1 <= t.X0 || t.Y1 <= t.Y0
}

// Area returns the number of cells inside the tile.
func (t Tile) Area() int {
	if t.Empty() {
		return 0
	}
	return (t.X1 - t.X0) * (t.Y1 - t.Y0)
}

// Contains reports whether cell (x, y) belongs to the tile.
func (t Tile) Contains(x, y int) bool {
	return x >= t.X0 && x < t.X1 && y >= t.Y0 && y < t.Y1
}

// Partition splits a width x height grid into tilesX*tilesY tiles using
// ceiling-division steps. The last row and column are clamped to the grid, so
// the tiles are pairwise disjoint and their union is the whole grid. Tile
// counts below 1 are treated as 1. When an axis has more tiles than cells the
// surplus tiles are emitted empty rather than dropped, which keeps the tile
// count stable at tilesX*tilesY.
func Partition(width, height, tilesX, tilesY int) []Tile {
	if tilesX < 1 {
		tilesX = 1
	}
	if tilesY < 1 {
		tilesY = 1
	}
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}

	wStep := (width + tilesX - 1) / tilesX
	hStep := (height + tilesY - 1) / tilesY

	tiles := make([]Tile, 0, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			tiles = append(tiles, Tile{
				X0: clampInt(tx*wStep, width),
				Y0: clampInt(ty*hStep, height),
				X1: clampInt((tx+1)*wStep, width),
				Y1: clampInt((ty+1)*hStep, height),
			})
		}
	}
	return tiles
}

func clampInt(v, limit int) int {
	if v > limit {
		return limit
	}
	return v
}
