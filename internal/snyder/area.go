package snyder

import (
	"fmt"
	"math"
	"math/rand"

	"pyxgrid/internal/geo"
	"pyxgrid/internal/icosahedron"
	"pyxgrid/internal/index"
)

// HexagonArea：分辨率 res 六边形单元在单位球上的面积，4π / (30·3^(res-1))
func HexagonArea(res int) float64 {
	return 4 * math.Pi / (30 * math.Pow(3, float64(res-1)))
}

// PentagonArea：五边形单元面积为同级六边形的 5/6
func PentagonArea(res int) float64 {
	return 5.0 / 6.0 * HexagonArea(res)
}

// CellAreaOnUnitSphere：单元在单位球上的面积
func CellAreaOnUnitSphere(a index.Address) (float64, error) {
	if a.IsNull() {
		return 0, fmt.Errorf("area of null address: %w", index.ErrIndexResolution)
	}
	if a.IsPentagon() {
		return PentagonArea(a.Resolution()), nil
	}
	return HexagonArea(a.Resolution()), nil
}

// CellAreaOnReferenceSphere：单元在参考球上的面积（平方米）
func CellAreaOnReferenceSphere(a index.Address) (float64, error) {
	area, err := CellAreaOnUnitSphere(a)
	if err != nil {
		return 0, err
	}
	return area * geo.ReferenceSphereRadius * geo.ReferenceSphereRadius, nil
}

// CellDistanceOnReferenceSphere：分辨率 res 相邻单元中心在参考球上的近似距离（米）
func CellDistanceOnReferenceSphere(res int) (float64, error) {
	if res < 1 || res > index.MaxResolution {
		return 0, fmt.Errorf("cell distance at resolution %d: %w", res, ErrProjectionRange)
	}
	return icosahedron.CentralAngle * index.InterCellDistance(res) * geo.ReferenceSphereRadius, nil
}

// PrecisionToResolution：角半径 precision 对应的分辨率，取单元不超出该范围的最粗一级
// 约束：0 < 2·precision ≤ 中心角
func PrecisionToResolution(precision float64) (int, error) {
	d := precision * 2
	if !(d > 0 && d <= icosahedron.CentralAngle) {
		return 0, fmt.Errorf("precision %v: %w", precision, ErrProjectionRange)
	}
	res := 0
	angle := icosahedron.CentralAngle
	for d < angle {
		angle /= math.Sqrt(3)
		res++
	}
	return res, nil
}

// ResolutionToPrecision：分辨率对应的角半径（弧度）
func ResolutionToPrecision(res int) (float64, error) {
	if res < 0 || res > index.MaxResolution {
		return 0, fmt.Errorf("precision at resolution %d: %w", res, ErrProjectionRange)
	}
	angle := icosahedron.CentralAngle
	for ; res > 0; res-- {
		angle /= math.Sqrt(3)
	}
	return angle / 2, nil
}

// Randomize：取球面上均匀分布的随机点所在的单元
// 约束：按面积均匀，五边形单元较小，被选中的概率相应略低
func (p *Projector) Randomize(rng *rand.Rand, res int) (index.Address, error) {
	z := 2*rng.Float64() - 1
	lon := (2*rng.Float64() - 1) * math.Pi
	return p.Forward(geo.LatLon{Lat: math.Asin(z), Lon: lon}, res)
}
