// 包 polygon：以单元地址为顶点的球面多边形，及其到瓦片集合的栅格化
// 背景：对每个候选单元做大圆射线奇偶检验，靠近边的单元继续细分
// 约束：边、点的派生数据只在单次调用内构建，Polygon 本身可被并发栅格化
package polygon

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"

	"pyxgrid/internal/index"
	"pyxgrid/internal/snyder"
)

// ErrInvalidPolygon：多边形输入不合法（空顶点、分辨率越界等）
var ErrInvalidPolygon = errors.New("invalid polygon")

// Class：单元相对多边形的分类
type Class int

const (
	Outside Class = iota
	Inside
	Boundary
)

func (c Class) String() string {
	switch c {
	case Inside:
		return "inside"
	case Boundary:
		return "boundary"
	}
	return "outside"
}

// Polygon：一个或多个环组成的球面多边形，首环为外环
// 约束：环的绕向不作要求；奇偶检验与绕向无关（外部点需在多边形外）
type Polygon struct {
	proj     *snyder.Projector
	vertices []index.Address
	// rings：每个已闭合环在 vertices 中的结束位置
	rings    []int
	exterior index.Address
}

// New：proj 为空时使用共享投影
func New(proj *snyder.Projector) *Polygon {
	if proj == nil {
		proj = snyder.Instance()
	}
	return &Polygon{proj: proj}
}

// AddVertex：向当前环追加顶点；与上一个顶点相同时忽略
func (p *Polygon) AddVertex(a index.Address) error {
	if a.IsNull() {
		return fmt.Errorf("null vertex: %w", ErrInvalidPolygon)
	}
	if n := len(p.vertices); n > p.ringStart() && p.vertices[n-1] == a {
		return nil
	}
	p.vertices = append(p.vertices, a)
	return nil
}

func (p *Polygon) ringStart() int {
	if len(p.rings) == 0 {
		return 0
	}
	return p.rings[len(p.rings)-1]
}

// CloseRing：闭合当前环；末顶点与首顶点相同时去掉末顶点
func (p *Polygon) CloseRing() {
	begin, end := p.ringStart(), len(p.vertices)
	if end-begin > 1 && p.vertices[begin] == p.vertices[end-1] {
		p.vertices = p.vertices[:end-1]
		end--
	}
	if end == begin {
		return
	}
	p.rings = append(p.rings, end)
}

// SetExteriorPoint：指定位于多边形外部的单元；不指定时取首条边的法向
func (p *Polygon) SetExteriorPoint(a index.Address) error {
	if a.IsNull() {
		return fmt.Errorf("null exterior point: %w", ErrInvalidPolygon)
	}
	p.exterior = a
	return nil
}

func (p *Polygon) Clear() {
	p.vertices, p.rings, p.exterior = nil, nil, index.Null
}

// Rings：已闭合的环（尾部未闭合的顶点视为最后一个环）
func (p *Polygon) Rings() [][]index.Address {
	var out [][]index.Address
	begin := 0
	for _, end := range p.rings {
		out = append(out, p.vertices[begin:end])
		begin = end
	}
	if begin < len(p.vertices) {
		tail := p.vertices[begin:]
		if len(tail) > 1 && tail[0] == tail[len(tail)-1] {
			tail = tail[:len(tail)-1]
		}
		out = append(out, tail)
	}
	return out
}

// Resolution：首顶点的分辨率；无顶点时为 0
func (p *Polygon) Resolution() int {
	if len(p.vertices) == 0 {
		return 0
	}
	return p.vertices[0].Resolution()
}

// SetResolution：把所有顶点改到分辨率 res，环内相邻重复的顶点合并
func (p *Polygon) SetResolution(res int) error {
	rings := p.Rings()
	closed := len(p.rings)
	p.vertices, p.rings = nil, nil
	for i, ring := range rings {
		for _, v := range ring {
			c, err := v.SetResolution(res)
			if err != nil {
				return err
			}
			if err := p.AddVertex(c); err != nil {
				return err
			}
		}
		if i < closed {
			p.CloseRing()
		}
	}
	return nil
}

// Materialize：按顶点分辨率填充栅格化
func (p *Polygon) Materialize() (*TileCollection, error) {
	return p.Rasterize(p.Resolution())
}

func (p *Polygon) Accept(v GeometryVisitor) error { return v.VisitOther(p) }

// edge：自 u 到 v 的一条边
type edge struct {
	u, v r3.Vector
	// normal：u×v 归一化，dir：normal×u 归一化（沿边方向）
	normal, dir r3.Vector
	// dirDv：v 在 dir 上的投影，lineDw：外部点在 normal 上的投影
	dirDv, lineDw float64
}

// raster：一次栅格化调用内的派生数据
type raster struct {
	proj  *snyder.Projector
	w     r3.Vector
	edges []edge
	// valid：外环至少三个顶点
	valid bool
}

func (p *Polygon) prepare() (*raster, error) {
	r := &raster{proj: p.proj}
	rings := p.Rings()
	if len(rings) == 0 || len(rings[0]) < 3 {
		return r, nil
	}
	r.valid = true

	points := make([][]r3.Vector, len(rings))
	for i, ring := range rings {
		points[i] = make([]r3.Vector, len(ring))
		for k, a := range ring {
			v, err := p.proj.InverseVector(a)
			if err != nil {
				return nil, fmt.Errorf("vertex %s: %w", a, err)
			}
			points[i][k] = v
		}
	}

	if !p.exterior.IsNull() {
		w, err := p.proj.InverseVector(p.exterior)
		if err != nil {
			return nil, fmt.Errorf("exterior point %s: %w", p.exterior, err)
		}
		r.w = w
	} else {
		r.w = points[0][0].Cross(points[0][1]).Normalize()
	}

	for _, ring := range points {
		if len(ring) < 3 {
			continue
		}
		for k := range ring {
			u, v := ring[k], ring[(k+1)%len(ring)]
			n := u.Cross(v)
			if n.Norm2() == 0 {
				continue
			}
			n = n.Normalize()
			d := n.Cross(u).Normalize()
			r.edges = append(r.edges, edge{
				u: u, v: v, normal: n, dir: d,
				dirDv: d.Dot(v), lineDw: n.Dot(r.w),
			})
		}
	}
	return r, nil
}

// ClassifyCell：单元（含其全部后代）相对多边形的分类
func (p *Polygon) ClassifyCell(a index.Address) (Class, error) {
	r, err := p.prepare()
	if err != nil {
		return Outside, err
	}
	return r.classifyCell(a)
}

// ClassifyPoint：单元中心点是否在多边形内
func (p *Polygon) ClassifyPoint(a index.Address) (Class, error) {
	r, err := p.prepare()
	if err != nil {
		return Outside, err
	}
	return r.classifyPoint(a)
}

// ClassifyCellBoundary：单元是否贴近多边形边界（始终使用较宽的半径）
func (p *Polygon) ClassifyCellBoundary(a index.Address) (Class, error) {
	r, err := p.prepare()
	if err != nil {
		return Outside, err
	}
	return r.classifyBoundary(a)
}
