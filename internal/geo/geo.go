// 包 geo：地理坐标、极坐标与单位球三维向量的基础类型
package geo

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// ReferenceSphereRadius：参考球半径（米），取 WGS84 等面积（authalic）半径
const ReferenceSphereRadius = 6371007.180918475

// LatLon：经纬度（弧度）
// 约束：Lat ∈ [-π/2, π/2]；Lon 由调用方归一化，本包不强制
type LatLon struct {
	Lat float64
	Lon float64
}

// FromDegrees：由角度构造经纬度
func FromDegrees(lat, lon float64) LatLon {
	return LatLon{Lat: (s1.Angle(lat) * s1.Degree).Radians(), Lon: (s1.Angle(lon) * s1.Degree).Radians()}
}

func (ll LatLon) LatDegrees() float64 { return (s1.Angle(ll.Lat) * s1.Radian).Degrees() }
func (ll LatLon) LonDegrees() float64 { return (s1.Angle(ll.Lon) * s1.Radian).Degrees() }

// Vector：转换为单位球上的三维点
func (ll LatLon) Vector() r3.Vector {
	return s2.PointFromLatLng(s2.LatLng{Lat: s1.Angle(ll.Lat), Lng: s1.Angle(ll.Lon)}).Vector
}

// FromVector：由任意非零三维向量求经纬度（向量先归一化）
func FromVector(v r3.Vector) LatLon {
	ll := s2.LatLngFromPoint(s2.Point{Vector: v.Normalize()})
	return LatLon{Lat: ll.Lat.Radians(), Lon: ll.Lng.Radians()}
}

// IsPole：纬度是否落在极点（容差 tol 弧度）
func (ll LatLon) IsPole(tol float64) bool {
	return math.Abs(math.Abs(ll.Lat)-math.Pi/2) <= tol
}

// Equal：在容差内比较两点
// 约束：极点处忽略经度；经度按 2π 周期比较，±180° 视为同一条经线
func Equal(a, b LatLon, tol float64) bool {
	if math.Abs(a.Lat-b.Lat) > tol {
		return false
	}
	if a.IsPole(tol) && b.IsPole(tol) {
		return true
	}
	d := math.Remainder(a.Lon-b.Lon, 2*math.Pi)
	return math.Abs(d) <= tol
}

// Distance：两点间大圆角距离（弧度）
func Distance(a, b LatLon) float64 {
	return a.Vector().Angle(b.Vector()).Radians()
}

// Azimuth：从 from 指向 to 的初始方位角（弧度，正北为 0，顺时针为正）
func Azimuth(from, to LatLon) float64 {
	dLon := to.Lon - from.Lon
	y := math.Sin(dLon) * math.Cos(to.Lat)
	x := math.Cos(from.Lat)*math.Sin(to.Lat) - math.Sin(from.Lat)*math.Cos(to.Lat)*math.Cos(dLon)
	return math.Atan2(y, x)
}

// Offset：自 from 沿方位角 az 前进角距离 dist 后的单位向量
// 背景：采用切平面基向量（north/east）表达，起点为极点时仍有定义
// 约束：极点处 north 按经度 from.Lon 取值，即经度充当参考子午线
func Offset(from LatLon, dist, az float64) r3.Vector {
	sLat, cLat := math.Sincos(from.Lat)
	sLon, cLon := math.Sincos(from.Lon)
	up := r3.Vector{X: cLat * cLon, Y: cLat * sLon, Z: sLat}
	north := r3.Vector{X: -sLat * cLon, Y: -sLat * sLon, Z: cLat}
	east := r3.Vector{X: -sLon, Y: cLon, Z: 0}
	sd, cd := math.Sincos(dist)
	sa, ca := math.Sincos(az)
	dir := north.Mul(ca).Add(east.Mul(sa))
	return up.Mul(cd).Add(dir.Mul(sd)).Normalize()
}

// Polar：平面极坐标（半径 + 逆时针角，弧度）
type Polar struct {
	Radius float64
	Angle  float64
}

// XY：转换为平面直角坐标
func (p Polar) XY() (float64, float64) {
	s, c := math.Sincos(p.Angle)
	return p.Radius * c, p.Radius * s
}

// PolarFromXY：由平面直角坐标构造极坐标
func PolarFromXY(x, y float64) Polar {
	return Polar{Radius: math.Hypot(x, y), Angle: math.Atan2(y, x)}
}

// Add：极坐标向量和
func (p Polar) Add(q Polar) Polar {
	x1, y1 := p.XY()
	x2, y2 := q.XY()
	return PolarFromXY(x1+x2, y1+y2)
}

// NormalizeAngle：把角度归一化到 (-π, π]
func NormalizeAngle(a float64) float64 {
	a = math.Remainder(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
