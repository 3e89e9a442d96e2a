// 包 snyder：Snyder 等积多面体投影，连接球面坐标与网格地址
// 背景：二十面体每个面切成三个 120° 子三角形，在子三角形上用闭式正算、牛顿迭代反算
// 约束：进程内共享一个只读 Projector（Instance），可被并发调用
package snyder

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/golang/geo/r3"

	"pyxgrid/internal/geo"
	"pyxgrid/internal/icosahedron"
	"pyxgrid/internal/index"
)

const (
	// Precision：正反投影所能达到的最好精度（弧度）
	Precision = 5.0e-8
	// MaxInverseIterations：反算方位角的牛顿迭代上限
	MaxInverseIterations = 50
	// InverseTolerance：牛顿步长收敛阈值
	InverseTolerance = 1e-13
)

var (
	// ErrProjectionRange：分辨率或精度越界
	ErrProjectionRange = errors.New("projection argument out of range")
	// ErrNotConverged：反算迭代达到上限仍未收敛，结果为最后一次近似
	ErrNotConverged = errors.New("inverse projection did not converge")
)

const (
	rad30  = math.Pi / 6
	rad90  = math.Pi / 2
	rad120 = 2 * math.Pi / 3
	rad240 = 4 * math.Pi / 3
)

// 投影常数
var (
	cot30 = 1 / math.Tan(rad30)

	// gh：面中心到顶点的连线与相邻棱之间的球面角
	gh    = 36 * math.Pi / 180
	sinGH = math.Sin(gh)
	cosGH = math.Cos(gh)

	// dh：面中心到顶点的球面距离，约 37.377°
	dh       = math.Asin(icosahedron.SideLength / math.Sqrt(3))
	cosDH    = math.Cos(dh)
	tanDH    = math.Tan(dh)
	tanDHSqr = tanDH * tanDH

	sinGHCosDH = sinGH * cosDH

	// r1：等积投影下二十面体相对外接球的半径，约 0.9103832815
	r1    = math.Sqrt(math.Pi / (15 * tanDHSqr * math.Sin(rad30) * math.Cos(rad30)))
	r1Sqr = r1 * r1

	// edgeScale：面内单位边长对应的投影长度
	edgeScale = 2 * r1 * tanDH * math.Sin(rad120)
)

// Convergence：一次反算的迭代情况
type Convergence struct {
	Iterations int
	Converged  bool
}

// Projector：绑定到一个二十面体朝向的投影
type Projector struct {
	model *icosahedron.Model
}

// New：以给定朝向构造投影
func New(m *icosahedron.Model) *Projector {
	return &Projector{model: m}
}

var (
	instanceOnce sync.Once
	instance     *Projector
)

// Instance：默认朝向的共享投影，首次调用时创建
func Instance() *Projector {
	instanceOnce.Do(func() {
		instance = New(icosahedron.Default())
	})
	return instance
}

// Init：启动时提前创建共享投影
func Init() { _ = Instance() }

// Model：投影所依托的二十面体
func (p *Projector) Model() *icosahedron.Model { return p.model }

func checkResolution(res int) error {
	if res < 1 || res > index.MaxResolution {
		return fmt.Errorf("resolution %d: %w", res, ErrProjectionRange)
	}
	return nil
}

// Forward：球面点 → 分辨率 res 的地址
// 约束：分辨率 1 先按分辨率 2 求出再截断
func (p *Projector) Forward(ll geo.LatLon, res int) (index.Address, error) {
	if err := checkResolution(res); err != nil {
		return index.Null, err
	}
	polar, face, err := p.ProjectToFace(ll)
	if err != nil {
		return index.Null, err
	}
	at := res
	if at < index.MinSubResolution {
		at = index.MinSubResolution
	}
	a, err := index.PolarToAddress(polar, at, face)
	if err != nil {
		return index.Null, fmt.Errorf("forward (%v, %v): %w", ll.LatDegrees(), ll.LonDegrees(), err)
	}
	if at != res {
		return a.SetResolution(res)
	}
	return a, nil
}

// ForwardVector：单位向量 → 地址
func (p *Projector) ForwardVector(v r3.Vector, res int) (index.Address, error) {
	return p.Forward(geo.FromVector(v), res)
}

// Inverse：地址 → 单元中心的球面点
// 约束：迭代未收敛时同时返回近似点与 ErrNotConverged
func (p *Projector) Inverse(a index.Address) (geo.LatLon, error) {
	if a.IsNull() {
		return geo.LatLon{}, fmt.Errorf("inverse of null address: %w", index.ErrIndexResolution)
	}
	polar, face, err := index.AddressToPolar(a)
	if err != nil {
		return geo.LatLon{}, err
	}
	ll, err := p.ProjectToSphere(polar, face)
	if err != nil {
		return ll, fmt.Errorf("inverse %s: %w", a, err)
	}
	return ll, nil
}

// InverseVector：地址 → 单元中心的单位向量
func (p *Projector) InverseVector(a index.Address) (r3.Vector, error) {
	ll, err := p.Inverse(a)
	return ll.Vector(), err
}

// ProjectToFace：球面点 → 所在面及面中心极坐标
// 约束：极角自面底边逆时针量起；半径以面边长为单位
func (p *Projector) ProjectToFace(ll geo.LatLon) (geo.Polar, int, error) {
	i, err := p.model.FindFace(ll.Vector())
	if err != nil {
		return geo.Polar{}, 0, err
	}
	f, _ := p.model.Face(i)
	return forwardOnFace(ll, f), int(f.Letter), nil
}

func forwardOnFace(ll geo.LatLon, f *icosahedron.Face) geo.Polar {
	c := f.CentroidLL
	sinC, cosC := math.Sincos(c.Lat)
	sinLat, cosLat := math.Sincos(ll.Lat)
	dLon := ll.Lon - c.Lon

	// 点到面中心的大圆距离
	z := math.Acos(clamp(sinC*sinLat + cosC*cosLat*math.Cos(dLon)))

	// 相对面方位角的方位
	az := math.Atan2(cosLat*math.Sin(dLon), cosC*sinLat-sinC*cosLat*math.Cos(dLon)) - f.Azimuth
	for az < 0 {
		az += 2 * math.Pi
	}
	for az >= 2*math.Pi {
		az -= 2 * math.Pi
	}

	rotate := 0.0
	switch {
	case az < rad120:
	case az <= rad240:
		rotate = rad120
	default:
		rotate = rad240
	}
	az -= rotate

	sinAz, cosAz := math.Sincos(az)
	dz := math.Atan2(tanDH, cosAz+cot30*sinAz)
	h := math.Acos(clamp(sinAz*sinGHCosDH - cosAz*cosGH))
	// 球面角超
	ag := az + gh + h - math.Pi
	az1 := math.Atan2(2*ag, r1Sqr*tanDHSqr-2*ag*cot30)
	fh := tanDH / (2 * (math.Cos(az1) + cot30*math.Sin(az1)) * math.Sin(dz/2))
	ph := 2 * r1 * fh * math.Sin(z/2)

	az1 += rotate
	return geo.Polar{Radius: ph / edgeScale, Angle: rad90 - az1}
}

// ProjectToSphere：面 face 上的极坐标 → 球面点
func (p *Projector) ProjectToSphere(polar geo.Polar, face int) (geo.LatLon, error) {
	ll, conv, err := p.ProjectToSphereDetail(polar, face)
	if err != nil {
		return ll, err
	}
	if !conv.Converged {
		return ll, fmt.Errorf("after %d iterations: %w", conv.Iterations, ErrNotConverged)
	}
	return ll, nil
}

// ProjectToSphereDetail：同 ProjectToSphere，另外给出迭代情况；未收敛不视为错误
func (p *Projector) ProjectToSphereDetail(polar geo.Polar, face int) (geo.LatLon, Convergence, error) {
	if face < 'A' || face > 'T' {
		return geo.LatLon{}, Convergence{}, fmt.Errorf("face %d: %w", face, icosahedron.ErrInvalidFace)
	}
	f, err := p.model.FaceByLetter(byte(face))
	if err != nil {
		return geo.LatLon{}, Convergence{}, err
	}
	c := f.CentroidLL
	if math.Abs(polar.Radius) < 1e-15 {
		return c, Convergence{Converged: true}, nil
	}

	// 换算为自面顶部顺时针量起的方位角
	az1 := rad90 - polar.Angle
	for az1 < 0 {
		az1 += 2 * math.Pi
	}
	for az1 >= 2*math.Pi {
		az1 -= 2 * math.Pi
	}
	rotate := 0.0
	switch {
	case az1 <= rad120:
	case az1 <= rad240:
		rotate = rad120
	default:
		rotate = rad240
	}
	az1 -= rotate
	az := az1

	conv := Convergence{Converged: true}
	// 约束：NaN 方位角进入迭代并以未收敛返回
	if !(math.Abs(az1) <= 1e-15) {
		agh := r1Sqr * tanDHSqr / (2 * (1/math.Tan(az1) + cot30))
		conv.Converged = false
		for conv.Iterations < MaxInverseIterations {
			conv.Iterations++
			sinAz, cosAz := math.Sincos(az)
			h := math.Acos(clamp(sinAz*sinGHCosDH - cosAz*cosGH))
			fAz := agh - az - gh - h + math.Pi
			fPrime := (cosAz*sinGHCosDH+sinAz*cosGH)/math.Sin(h) - 1
			step := -fAz / fPrime
			az += step
			if math.Abs(step) <= InverseTolerance {
				conv.Converged = true
				break
			}
		}
	} else {
		az, az1 = 0, 0
	}

	dz := math.Atan2(tanDH, math.Cos(az)+cot30*math.Sin(az))
	fh := tanDH / (2 * (math.Cos(az1) + cot30*math.Sin(az1)) * math.Sin(dz/2))
	ph := polar.Radius * edgeScale
	z := 2 * math.Asin(clamp(ph/(2*r1*fh)))

	az = geo.NormalizeAngle(az + rotate + f.Azimuth)

	sinC, cosC := math.Sincos(c.Lat)
	sinZ, cosZ := math.Sincos(z)
	lat := math.Asin(clamp(sinC*cosZ + cosC*sinZ*math.Cos(az)))
	out := geo.LatLon{Lat: lat}
	if out.IsPole(1e-12) {
		return out, conv, nil
	}
	sinLon := clamp(math.Sin(az) * sinZ / math.Cos(lat))
	cosLon := clamp((cosZ - sinC*math.Sin(lat)) / cosC / math.Cos(lat))
	out.Lon = geo.NormalizeAngle(c.Lon + math.Atan2(sinLon, cosLon))
	return out, conv, nil
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}
