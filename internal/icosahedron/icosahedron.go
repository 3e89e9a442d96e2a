// 包 icosahedron：网格所依托的正二十面体参考几何（12 顶点、20 面）
// 约束：模型构造后只读，可被多协程并发读取
package icosahedron

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/golang/geo/r3"

	"pyxgrid/internal/geo"
)

const (
	NumVertices = 12
	NumFaces    = 20
)

var (
	// Phi：黄金分割比
	Phi = (1 + math.Sqrt(5)) / 2
	// SideLength：单位外接球上的棱长（弦长）
	SideLength = 4 / math.Sqrt(10+2*math.Sqrt(5))
	// CentralAngle：相邻两顶点对球心的张角
	CentralAngle = math.Atan(2)
	// InRadius：单位外接球时球心到面的距离
	InRadius = Phi * Phi / (math.Sqrt(3) * math.Sqrt(Phi*Phi+1))
)

var (
	// ErrInvalidFace：面序号越界
	ErrInvalidFace = errors.New("invalid face")
	// ErrGeometryInvariant：单位球上的点找不到所在面
	ErrGeometryInvariant = errors.New("geometry invariant violation")
)

// faceVertices：各面顶点编号（1 起），自外侧看逆时针，首个为面的尖顶
var faceVertices = [NumFaces][3]int{
	{1, 2, 3}, {1, 3, 4}, {1, 4, 5}, {1, 5, 6}, {1, 6, 2},
	{7, 3, 2}, {8, 4, 3}, {9, 5, 4}, {10, 6, 5}, {11, 2, 6},
	{3, 7, 8}, {4, 8, 9}, {5, 9, 10}, {6, 10, 11}, {2, 11, 7},
	{12, 8, 7}, {12, 9, 8}, {12, 10, 9}, {12, 11, 10}, {12, 7, 11},
}

// Face：面的预计算数据
type Face struct {
	Letter   byte
	Vertices [3]int
	// Centroid：球面质心（三顶点和归一化）
	Centroid   r3.Vector
	CentroidLL geo.LatLon
	// Azimuth：自质心指向首顶点的方位角
	Azimuth float64
	// Normals：v_i × v_{i+1}，点在面内当且仅当三个点积均非负
	Normals [3]r3.Vector
}

// Contains：点是否位于面的三个半空间内（容差 tol，取负值放宽）
func (f *Face) Contains(v r3.Vector, tol float64) bool {
	for _, n := range f.Normals {
		if n.Dot(v) < tol {
			return false
		}
	}
	return true
}

// Model：给定朝向的二十面体
type Model struct {
	vertex0  geo.LatLon
	azimuth  float64
	vertices [NumVertices]geo.LatLon
	vectors  [NumVertices]r3.Vector
	faces    [NumFaces]Face
}

// New：以 vertex0 为顶点 1、azimuth 为顶点 2 的方位角构造
// 背景：顶点 2..6 距 vertex0 张角 atan 2，方位每次 -72°；7..11 张角 π - atan 2，再偏 -36°；12 为对跖点
func New(vertex0 geo.LatLon, azimuth float64) *Model {
	m := &Model{vertex0: vertex0, azimuth: azimuth}
	m.vectors[0] = vertex0.Vector()
	step := 2 * math.Pi / 5
	for k := 0; k < 5; k++ {
		m.vectors[1+k] = geo.Offset(vertex0, CentralAngle, azimuth-step*float64(k))
		m.vectors[6+k] = geo.Offset(vertex0, math.Pi-CentralAngle, azimuth-step/2-step*float64(k))
	}
	m.vectors[11] = m.vectors[0].Mul(-1)
	for i, v := range m.vectors {
		m.vertices[i] = geo.FromVector(v)
	}

	for i, fv := range faceVertices {
		f := &m.faces[i]
		f.Letter = byte('A' + i)
		f.Vertices = fv
		a, b, c := m.vectors[fv[0]-1], m.vectors[fv[1]-1], m.vectors[fv[2]-1]
		f.Centroid = a.Add(b).Add(c).Normalize()
		f.CentroidLL = geo.FromVector(f.Centroid)
		f.Azimuth = geo.Azimuth(f.CentroidLL, m.vertices[fv[0]-1])
		f.Normals = [3]r3.Vector{a.Cross(b), b.Cross(c), c.Cross(a)}
	}
	return m
}

var (
	defaultOnce  sync.Once
	defaultModel *Model
)

// DefaultVertex0 / DefaultAzimuth：默认朝向，顶点 1 在北极，顶点 2 落在本初子午线上
var (
	DefaultVertex0 = geo.LatLon{Lat: math.Pi / 2, Lon: 0}
	DefaultAzimuth = math.Pi
)

// Default：进程级共享的默认朝向模型
func Default() *Model {
	defaultOnce.Do(func() {
		defaultModel = New(DefaultVertex0, DefaultAzimuth)
	})
	return defaultModel
}

func (m *Model) Vertex0() geo.LatLon { return m.vertex0 }
func (m *Model) Azimuth() float64    { return m.azimuth }

// Vertex：顶点 v（1..12）的经纬度
func (m *Model) Vertex(v int) geo.LatLon { return m.vertices[v-1] }

// VertexVector：顶点 v（1..12）的单位向量
func (m *Model) VertexVector(v int) r3.Vector { return m.vectors[v-1] }

// Face：按序号（0..19）取面
func (m *Model) Face(i int) (*Face, error) {
	if i < 0 || i >= NumFaces {
		return nil, fmt.Errorf("face %d: %w", i, ErrInvalidFace)
	}
	return &m.faces[i], nil
}

// FaceByLetter：按面字母（'A'..'T'）取面
func (m *Model) FaceByLetter(c byte) (*Face, error) {
	return m.Face(int(c) - 'A')
}

// FindFace：线性扫描找出点所在的面
// 约束：以 -1e-12 容差单次扫描，点落在公共棱上时按 A..T 顺序取首个匹配；非单位向量报错
func (m *Model) FindFace(v r3.Vector) (int, error) {
	if n := v.Norm(); math.IsNaN(n) || math.Abs(n-1) > 1e-9 {
		return -1, fmt.Errorf("find face of %v: norm %g: %w", v, n, ErrGeometryInvariant)
	}
	for i := range m.faces {
		if m.faces[i].Contains(v, -1e-12) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("no face contains %v: %w", v, ErrGeometryInvariant)
}
