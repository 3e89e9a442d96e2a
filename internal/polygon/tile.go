package polygon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"pyxgrid/internal/index"
	"pyxgrid/internal/snyder"
)

var (
	// ErrResolutionMismatch：瓦片的单元分辨率与集合不一致，属于地址分辨率错误
	ErrResolutionMismatch = fmt.Errorf("cell resolution mismatch: %w", index.ErrIndexResolution)
	// ErrInvalidTile：瓦片根为空或比单元分辨率更细
	ErrInvalidTile = errors.New("invalid tile")
)

// Tile：以 Root 为根、在单元分辨率 Res 上展开的全部后代单元
type Tile struct {
	Root index.Address
	Res  int
}

// NewTile：校验后构造瓦片
func NewTile(root index.Address, res int) (Tile, error) {
	if root.IsNull() || res < root.Resolution() || res > index.MaxResolution {
		return Tile{}, fmt.Errorf("tile %s at %d: %w", root, res, ErrInvalidTile)
	}
	return Tile{Root: root, Res: res}, nil
}

func (t Tile) String() string { return t.Root.String() + " " + strconv.Itoa(t.Res) }

// Resolution：瓦片的单元分辨率
func (t Tile) Resolution() int { return t.Res }

// Materialize：只含自身的集合
func (t Tile) Materialize() (*TileCollection, error) {
	tc := NewTileCollection()
	if err := tc.AddTile(t.Root, t.Res); err != nil {
		return nil, err
	}
	return tc, nil
}

func (t Tile) Accept(v GeometryVisitor) error { return v.VisitTile(t) }

// EachCell：按深度优先遍历瓦片在 Res 上的单元，fn 返回 false 时停止
func (t Tile) EachCell(fn func(index.Address) bool) bool {
	return eachDescendant(t.Root, t.Res, fn)
}

func eachDescendant(a index.Address, res int, fn func(index.Address) bool) bool {
	if a.Resolution() >= res {
		return fn(a)
	}
	for _, c := range index.Children(a) {
		if !eachDescendant(c, res, fn) {
			return false
		}
	}
	return true
}

// TileCollection：同一单元分辨率下的一组互不包含的瓦片
// 约束：新加入的瓦片若已被某个根覆盖则忽略；若覆盖已有根则替换它们
// 开启聚合时，父单元的全部子单元都在集合中时合并为父单元
type TileCollection struct {
	res       int
	roots     map[index.Address]struct{}
	aggregate bool
}

// NewTileCollection：默认开启聚合
func NewTileCollection() *TileCollection {
	return &TileCollection{roots: make(map[index.Address]struct{}), aggregate: true}
}

// SetAutoAggregate：切换自动聚合，只影响之后加入的瓦片
func (tc *TileCollection) SetAutoAggregate(on bool) { tc.aggregate = on }

// Resolution：集合的单元分辨率；空集合为 0
func (tc *TileCollection) Resolution() int { return tc.res }

func (tc *TileCollection) IsEmpty() bool { return len(tc.roots) == 0 }

// GeometryCount：根（瓦片）的个数
func (tc *TileCollection) GeometryCount() int { return len(tc.roots) }

func (tc *TileCollection) Clear() {
	tc.roots = make(map[index.Address]struct{})
	tc.res = 0
}

// AddTile：加入以 root 为根、单元分辨率 res 的瓦片
// 约束：第一块瓦片决定集合分辨率；root 比 res 细时先截断到 res
func (tc *TileCollection) AddTile(root index.Address, res int) error {
	if root.IsNull() || res < 1 || res > index.MaxResolution {
		return fmt.Errorf("tile %s at %d: %w", root, res, ErrInvalidTile)
	}
	if tc.IsEmpty() {
		tc.res = res
	} else if res != tc.res {
		return fmt.Errorf("tile at %d into collection at %d: %w", res, tc.res, ErrResolutionMismatch)
	}
	if root.Resolution() > res {
		var err error
		if root, err = root.SetResolution(res); err != nil {
			return err
		}
	}
	tc.insert(root)
	return nil
}

func (tc *TileCollection) insert(root index.Address) {
	if tc.covered(root) {
		return
	}
	for r := range tc.roots {
		if root.IsAncestorOf(r) {
			delete(tc.roots, r)
		}
	}
	tc.roots[root] = struct{}{}
	if tc.aggregate {
		tc.aggregateFrom(root)
	}
}

// covered：a 或它的某个祖先已在集合中
func (tc *TileCollection) covered(a index.Address) bool {
	for {
		if _, ok := tc.roots[a]; ok {
			return true
		}
		p, err := index.Parent(a)
		if err != nil {
			return false
		}
		a = p
	}
}

func (tc *TileCollection) aggregateFrom(a index.Address) {
	for {
		p, err := index.Parent(a)
		if err != nil {
			return
		}
		children := index.Children(p)
		for _, c := range children {
			if _, ok := tc.roots[c]; !ok {
				return
			}
		}
		for _, c := range children {
			delete(tc.roots, c)
		}
		tc.roots[p] = struct{}{}
		a = p
	}
}

// AddGeometry：并入另一集合；分辨率取两者中较细的一个
func (tc *TileCollection) AddGeometry(o *TileCollection) {
	if o == nil || o.IsEmpty() {
		return
	}
	if o.res > tc.res {
		tc.res = o.res
	}
	for r := range o.roots {
		tc.insert(r)
	}
}

// Tiles：按地址排序的瓦片
func (tc *TileCollection) Tiles() []Tile {
	out := make([]Tile, 0, len(tc.roots))
	for r := range tc.roots {
		out = append(out, Tile{Root: r, Res: tc.res})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Root.Less(out[j].Root) })
	return out
}

// Roots：按地址排序的根
func (tc *TileCollection) Roots() []index.Address {
	tiles := tc.Tiles()
	out := make([]index.Address, len(tiles))
	for i, t := range tiles {
		out[i] = t.Root
	}
	return out
}

// EachCell：按根的顺序遍历集合分辨率上的全部单元
func (tc *TileCollection) EachCell(fn func(index.Address) bool) {
	for _, t := range tc.Tiles() {
		if !t.EachCell(fn) {
			return
		}
	}
}

// Cells：展开后的全部单元
func (tc *TileCollection) Cells() []index.Address {
	var out []index.Address
	tc.EachCell(func(a index.Address) bool {
		out = append(out, a)
		return true
	})
	return out
}

func (tc *TileCollection) CellCount() int {
	n := 0
	tc.EachCell(func(index.Address) bool {
		n++
		return true
	})
	return n
}

// Contains：地址 a（截断到集合分辨率后）是否被某个根覆盖
func (tc *TileCollection) Contains(a index.Address) bool {
	if a.IsNull() || tc.IsEmpty() {
		return false
	}
	if a.Resolution() > tc.res {
		var err error
		if a, err = a.SetResolution(tc.res); err != nil {
			return false
		}
	}
	return tc.covered(a)
}

// Intersection：两集合的交；结果取较细的分辨率
func (tc *TileCollection) Intersection(o *TileCollection) *TileCollection {
	out := NewTileCollection()
	if tc.IsEmpty() || o == nil || o.IsEmpty() {
		return out
	}
	out.res = tc.res
	if o.res > out.res {
		out.res = o.res
	}
	for a := range tc.roots {
		for b := range o.roots {
			switch {
			case a.IsAncestorOf(b):
				out.insert(b)
			case b.IsAncestorOf(a):
				out.insert(a)
			}
		}
	}
	if out.IsEmpty() {
		out.res = 0
	}
	return out
}

// Intersects：两集合是否有公共单元
func (tc *TileCollection) Intersects(o *TileCollection) bool {
	if o == nil {
		return false
	}
	for a := range tc.roots {
		for b := range o.roots {
			if a.IsAncestorOf(b) || b.IsAncestorOf(a) {
				return true
			}
		}
	}
	return false
}

// Union：两集合的并，不修改任一输入
func (tc *TileCollection) Union(o *TileCollection) *TileCollection {
	out := tc.Clone()
	out.AddGeometry(o)
	return out
}

func (tc *TileCollection) Clone() *TileCollection {
	out := &TileCollection{res: tc.res, roots: make(map[index.Address]struct{}, len(tc.roots)), aggregate: tc.aggregate}
	for r := range tc.roots {
		out.roots[r] = struct{}{}
	}
	return out
}

// Area：单位球上的覆盖面积
func (tc *TileCollection) Area() float64 {
	total := 0.0
	tc.EachCell(func(a index.Address) bool {
		area, err := snyder.CellAreaOnUnitSphere(a)
		if err == nil {
			total += area
		}
		return true
	})
	return total
}

// Equal：根集合与分辨率都相同
func (tc *TileCollection) Equal(o *TileCollection) bool {
	if o == nil || tc.res != o.res || len(tc.roots) != len(o.roots) {
		return false
	}
	for r := range tc.roots {
		if _, ok := o.roots[r]; !ok {
			return false
		}
	}
	return true
}

// Materialize：集合本身
func (tc *TileCollection) Materialize() (*TileCollection, error) { return tc, nil }

func (tc *TileCollection) Accept(v GeometryVisitor) error { return v.VisitTileCollection(tc) }

// WriteStream：每行一个瓦片，格式为 "ROOT RES"
func (tc *TileCollection) WriteStream(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, t := range tc.Tiles() {
		if _, err := fmt.Fprintln(bw, t.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ParseTileStream：读取 WriteStream 的输出；空行忽略
func ParseTileStream(r io.Reader) (*TileCollection, error) {
	tc := NewTileCollection()
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		fields := strings.Fields(s)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: %q: %w", line, s, index.ErrIndexFormat)
		}
		root, err := index.Parse(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		res, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: resolution %q: %w", line, fields[1], index.ErrIndexFormat)
		}
		if err := tc.AddTile(root, res); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return tc, nil
}
