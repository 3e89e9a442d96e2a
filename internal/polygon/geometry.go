package polygon

import "pyxgrid/internal/index"

// Geometry：可参与求交的几何体
// 约束：具体类型限定为 Cell、Tile、*TileCollection 以及走 VisitOther 的其他几何（如 *Polygon）
type Geometry interface {
	// Resolution：几何体的单元分辨率
	Resolution() int
	// Materialize：展开为瓦片集合
	Materialize() (*TileCollection, error)
	Accept(v GeometryVisitor) error
}

// GeometryVisitor：按几何体具体类型分派
type GeometryVisitor interface {
	VisitCell(c Cell) error
	VisitTile(t Tile) error
	VisitTileCollection(tc *TileCollection) error
	VisitOther(g Geometry) error
}

// Cell：单个单元
type Cell struct {
	Address index.Address
}

func (c Cell) Resolution() int { return c.Address.Resolution() }

func (c Cell) Materialize() (*TileCollection, error) {
	tc := NewTileCollection()
	if err := tc.AddTile(c.Address, c.Address.Resolution()); err != nil {
		return nil, err
	}
	return tc, nil
}

func (c Cell) Accept(v GeometryVisitor) error { return v.VisitCell(c) }

// IsEmptyGeometry：nil、空集合均视为空
func IsEmptyGeometry(g Geometry) bool {
	switch x := g.(type) {
	case nil:
		return true
	case *TileCollection:
		return x == nil || x.IsEmpty()
	case Cell:
		return x.Address.IsNull()
	}
	return false
}

var (
	_ Geometry = Cell{}
	_ Geometry = Tile{}
	_ Geometry = (*TileCollection)(nil)
	_ Geometry = (*Polygon)(nil)
)
