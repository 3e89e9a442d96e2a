// 包 hittest：点、线段与单元的近似相交判定，用于交互式拾取
// 背景：以单元中心为圆心，内切圆以内必然相交，外接圆以外必然不相交，其间给出不确定
package hittest

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"pyxgrid/internal/icosahedron"
	"pyxgrid/internal/index"
	"pyxgrid/internal/snyder"
)

const (
	eps = 2.220446049250313e-16
	// 投影形变下内切圆的收缩系数
	pentagonFactor = 0.87
	hexagonFactor  = 0.93
	// 外接圆的放大系数
	expansion = 1.13
)

// Result：不确定判定的三种结论
type Result int

const (
	Miss Result = iota
	Unsure
	Hit
)

func (r Result) String() string {
	switch r {
	case Hit:
		return "hit"
	case Unsure:
		return "unsure"
	}
	return "miss"
}

// Cell：单元的判定圆
// 约束：InRadius、CircumRadius 为单位球上的角半径；chord 为对应的弦长
type Cell struct {
	Address      index.Address
	Center       r3.Vector
	InRadius     float64
	CircumRadius float64

	inChord, circumChord float64
}

// Tester：基于投影求单元中心
type Tester struct {
	proj *snyder.Projector
}

// New：proj 为空时使用共享投影
func New(proj *snyder.Projector) *Tester {
	if proj == nil {
		proj = snyder.Instance()
	}
	return &Tester{proj: proj}
}

// For：计算单元 a 的判定圆
func (t *Tester) For(a index.Address) (Cell, error) {
	if a.IsNull() {
		return Cell{}, fmt.Errorf("hit test on null cell: %w", index.ErrIndexResolution)
	}
	center, err := t.proj.InverseVector(a)
	if err != nil {
		return Cell{}, fmt.Errorf("hit test %s: %w", a, err)
	}
	res := a.Resolution()
	factor := hexagonFactor
	if a.IsPentagon() {
		factor = pentagonFactor
	}
	c := Cell{
		Address:      a,
		Center:       center,
		InRadius:     index.InRadius(res)*icosahedron.CentralAngle*factor - eps,
		CircumRadius: expansion*index.CircumRadius(res)*icosahedron.CentralAngle + eps,
	}
	c.inChord = chord(c.InRadius)
	c.circumChord = chord(c.CircumRadius)
	return c, nil
}

func chord(r float64) float64 { return 2 * math.Sin(r/2) }

// IntersectPointCertain：点与中心的弦距不超过内切圆
func (c Cell) IntersectPointCertain(p r3.Vector) bool {
	return p.Normalize().Sub(c.Center).Norm() <= c.inChord
}

// IntersectPointUncertain：内切圆内为 Hit，外接圆外为 Miss
func (c Cell) IntersectPointUncertain(p r3.Vector) Result {
	d := p.Normalize().Sub(c.Center).Norm()
	switch {
	case d <= c.inChord:
		return Hit
	case d > c.circumChord:
		return Miss
	}
	return Unsure
}

// IntersectSegmentUncertain：大圆弧 a→b 与判定圆的关系
// 约束：弧长须小于 π；a、b 重合时退化为点判定
func (c Cell) IntersectSegmentUncertain(a, b r3.Vector) Result {
	a, b = a.Normalize(), b.Normalize()
	if a.Cross(b).Norm2() == 0 {
		return c.IntersectPointUncertain(a)
	}
	d := s2.DistanceFromSegment(s2.Point{Vector: c.Center}, s2.Point{Vector: a}, s2.Point{Vector: b})
	switch {
	case d <= s1.Angle(c.InRadius):
		return Hit
	case d > s1.Angle(c.CircumRadius):
		return Miss
	}
	return Unsure
}

// IntersectPointCellCertain：点是否必然落在单元 a 内
func (t *Tester) IntersectPointCellCertain(p r3.Vector, a index.Address) (bool, error) {
	c, err := t.For(a)
	if err != nil {
		return false, err
	}
	return c.IntersectPointCertain(p), nil
}

// IntersectSegmentCellUncertain：线段与单元 a 的不确定判定
func (t *Tester) IntersectSegmentCellUncertain(a, b r3.Vector, cell index.Address) (Result, error) {
	c, err := t.For(cell)
	if err != nil {
		return Miss, err
	}
	return c.IntersectSegmentUncertain(a, b), nil
}
