package polygon

import (
	"fmt"

	"pyxgrid/internal/icosahedron"
	"pyxgrid/internal/index"
)

const (
	// eps：浮点比较容差
	eps = 2.220446049250313e-16
	// expansion：补偿投影形变的单元半径放大系数
	expansion = 1.13
)

// cellRadius：各分辨率单元的判定半径，[0] 用于有顶点子单元的单元，[1] 用于其余单元
var cellRadius [index.MaxResolution + 1][2]float64

func init() {
	for res := range cellRadius {
		cellRadius[res][0] = expansion*index.CircumRadius(res-1)*icosahedron.CentralAngle + eps
		cellRadius[res][1] = expansion*index.CircumRadius(res)*icosahedron.CentralAngle + eps
	}
}

// crossings：自 t 指向外部点的射线穿过的边数；near 非零时同时报告 t 是否在某条边的 near 范围内
func (r *raster) crossings(a index.Address, near float64) (n int, onEdge bool, err error) {
	t, err := r.proj.InverseVector(a)
	if err != nil {
		return 0, false, fmt.Errorf("cell %s: %w", a, err)
	}
	ray := t.Cross(r.w).Normalize()
	for i := range r.edges {
		e := &r.edges[i]
		lineDt := e.normal.Dot(t)
		if near > 0 && -near <= lineDt && lineDt <= near {
			dirDt := e.dir.Dot(t)
			if -near <= dirDt && dirDt <= e.dirDv+near {
				onEdge = true
			}
		}
		// 端点落在射线 eps 以内时视为在射线前方
		switch {
		case lineDt < -eps && eps < e.lineDw:
			if ray.Dot(e.v) < -eps && -eps <= ray.Dot(e.u) {
				n++
			}
		case e.lineDw < -eps && eps < lineDt:
			if ray.Dot(e.u) < -eps && -eps <= ray.Dot(e.v) {
				n++
			}
		}
	}
	return n, onEdge, nil
}

func (r *raster) classifyCell(a index.Address) (Class, error) {
	if !r.valid {
		return Outside, nil
	}
	major := 1
	if a.HasVertexChildren() {
		major = 0
	}
	n, onEdge, err := r.crossings(a, cellRadius[a.Resolution()][major])
	if err != nil {
		return Outside, err
	}
	if onEdge {
		return Boundary, nil
	}
	if n%2 != 0 {
		return Inside, nil
	}
	return Outside, nil
}

func (r *raster) classifyPoint(a index.Address) (Class, error) {
	if !r.valid {
		return Outside, nil
	}
	n, _, err := r.crossings(a, 0)
	if err != nil {
		return Outside, err
	}
	if n%2 != 0 {
		return Inside, nil
	}
	return Outside, nil
}

func (r *raster) classifyBoundary(a index.Address) (Class, error) {
	if !r.valid {
		return Outside, nil
	}
	_, onEdge, err := r.crossings(a, cellRadius[a.Resolution()][1])
	if err != nil {
		return Outside, err
	}
	if onEdge {
		return Boundary, nil
	}
	return Outside, nil
}

// defaultSeeds：分辨率 2 的 92 个单元；目标分辨率为 1 时取 32 个主单元
func defaultSeeds(res int) []index.Address {
	if res >= index.MinSubResolution {
		return index.Resolution2Cells()
	}
	out := make([]index.Address, 0, index.NumVertices+index.NumFaces)
	for v := index.FirstVertex; v <= index.LastVertex; v++ {
		out = append(out, index.Vertex(v))
	}
	for f := index.FirstFace; f <= index.LastFace; f++ {
		out = append(out, index.Face(byte(f)))
	}
	return out
}

// Rasterize：填充栅格化到分辨率 res
func (p *Polygon) Rasterize(res int) (*TileCollection, error) {
	return p.traverse(defaultSeeds(res), res, false)
}

// RasterizeFrom：只在 seeds 的覆盖范围内填充栅格化
func (p *Polygon) RasterizeFrom(seeds []index.Address, res int) (*TileCollection, error) {
	return p.traverse(seeds, res, false)
}

// RasterizeBoundary：只保留贴近边界的单元，得到轮廓覆盖
func (p *Polygon) RasterizeBoundary(res int) (*TileCollection, error) {
	return p.traverse(defaultSeeds(res), res, true)
}

// BoundaryIntersection：瓦片范围内的轮廓覆盖
func (p *Polygon) BoundaryIntersection(t Tile) (*TileCollection, error) {
	return p.traverse([]index.Address{t.Root}, t.Res, true)
}

// traverse：显式栈上的深度优先细分
// 背景：目标分辨率上只判定中心点；更粗的分辨率上判定整个单元，Inside 整棵子树作为一块瓦片收下
func (p *Polygon) traverse(seeds []index.Address, res int, boundary bool) (*TileCollection, error) {
	if res < 1 || res > index.MaxResolution {
		return nil, fmt.Errorf("rasterize at %d: %w", res, index.ErrIndexResolution)
	}
	for _, s := range seeds {
		if s.IsNull() || s.Resolution() > res {
			return nil, fmt.Errorf("seed %s finer than %d: %w", s, res, ErrInvalidTile)
		}
	}
	out := NewTileCollection()
	r, err := p.prepare()
	if err != nil {
		return nil, err
	}
	if !r.valid {
		return out, nil
	}

	stack := append([]index.Address(nil), seeds...)
	for len(stack) > 0 {
		a := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if a.Resolution() == res {
			var c Class
			if boundary {
				c, err = r.classifyBoundary(a)
			} else {
				c, err = r.classifyPoint(a)
			}
			if err != nil {
				return nil, err
			}
			if c != Outside {
				if err := out.AddTile(a, res); err != nil {
					return nil, err
				}
			}
			continue
		}

		c, err := r.classifyCell(a)
		if err != nil {
			return nil, err
		}
		switch c {
		case Inside:
			if !boundary {
				if err := out.AddTile(a, res); err != nil {
					return nil, err
				}
			}
		case Boundary:
			stack = append(stack, index.Children(a)...)
		}
	}
	return out, nil
}

// Intersection：与另一几何体求交
// 约束：单元返回自身或空集合；瓦片、瓦片集合以其根为种子栅格化；其他几何先各自展开再求交
func (p *Polygon) Intersection(g Geometry) (Geometry, error) {
	v := &intersectVisitor{p: p}
	if err := g.Accept(v); err != nil {
		return nil, err
	}
	return v.out, nil
}

// Intersects：交集是否非空
func (p *Polygon) Intersects(g Geometry) (bool, error) {
	out, err := p.Intersection(g)
	if err != nil {
		return false, err
	}
	return !IsEmptyGeometry(out), nil
}

type intersectVisitor struct {
	p   *Polygon
	out Geometry
}

func (v *intersectVisitor) VisitCell(c Cell) error {
	class, err := v.p.ClassifyCell(c.Address)
	if err != nil {
		return err
	}
	if class == Outside {
		v.out = NewTileCollection()
	} else {
		v.out = c
	}
	return nil
}

func (v *intersectVisitor) VisitTile(t Tile) error {
	tc, err := v.p.RasterizeFrom([]index.Address{t.Root}, t.Res)
	v.out = tc
	return err
}

func (v *intersectVisitor) VisitTileCollection(tc *TileCollection) error {
	if tc.IsEmpty() {
		v.out = NewTileCollection()
		return nil
	}
	out, err := v.p.RasterizeFrom(tc.Roots(), tc.Resolution())
	v.out = out
	return err
}

func (v *intersectVisitor) VisitOther(g Geometry) error {
	mine, err := v.p.Rasterize(g.Resolution())
	if err != nil {
		return err
	}
	other, err := g.Materialize()
	if err != nil {
		return err
	}
	v.out = mine.Intersection(other)
	return nil
}
