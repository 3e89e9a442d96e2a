package index

import (
	"fmt"
	"math"

	"pyxgrid/internal/geo"
)

// 二十面体地址运算
// 背景：分辨率 0/1 的单元落在顶点与面上，跨越面或顶点时通过连接表查目标主分辨率及需要补偿的逆时针旋转
// 约束：表中 -1 表示该方向不存在（五边形缺口）

// res0Connect：分辨率 0 顶点沿方向移动到的顶点 [顶点-1][方向-1]{目标, 旋转}
var res0Connect = [NumVertices][NumSides][2]int{
	{{-1, -1}, {2, 3}, {3, 2}, {4, 1}, {5, 0}, {6, 5}},
	{{-1, -1}, {1, 3}, {6, 0}, {11, 0}, {7, 0}, {3, 0}},
	{{-1, -1}, {1, 4}, {2, 0}, {7, 0}, {8, 0}, {4, 0}},
	{{-1, -1}, {1, 5}, {3, 0}, {8, 0}, {9, 0}, {5, 0}},
	{{-1, -1}, {1, 0}, {4, 0}, {9, 0}, {10, 0}, {6, 0}},
	{{-1, -1}, {1, 1}, {5, 0}, {10, 0}, {11, 0}, {2, 0}},
	{{3, 0}, {2, 0}, {11, 0}, {-1, -1}, {12, 1}, {8, 0}},
	{{4, 0}, {3, 0}, {7, 0}, {-1, -1}, {12, 0}, {9, 0}},
	{{5, 0}, {4, 0}, {8, 0}, {-1, -1}, {12, 5}, {10, 0}},
	{{6, 0}, {5, 0}, {9, 0}, {-1, -1}, {12, 4}, {11, 0}},
	{{2, 0}, {6, 0}, {10, 0}, {-1, -1}, {12, 3}, {7, 0}},
	{{9, 1}, {8, 0}, {7, 5}, {-1, -1}, {11, 3}, {10, 2}},
}

// res1VertConnect：分辨率 1 顶点沿方向移动到的面 [顶点-1][方向-1]{面, 旋转}
var res1VertConnect = [NumVertices][NumSides][2]int{
	{{-1, -1}, {'A', 2}, {'B', 1}, {'C', 0}, {'D', 5}, {'E', 4}},
	{{-1, -1}, {'E', 0}, {'J', 0}, {'O', 0}, {'F', 0}, {'A', 0}},
	{{-1, -1}, {'A', 0}, {'F', 0}, {'K', 0}, {'G', 0}, {'B', 0}},
	{{-1, -1}, {'B', 0}, {'G', 0}, {'L', 0}, {'H', 0}, {'C', 0}},
	{{-1, -1}, {'C', 0}, {'H', 0}, {'M', 0}, {'I', 0}, {'D', 0}},
	{{-1, -1}, {'D', 0}, {'I', 0}, {'N', 0}, {'J', 0}, {'E', 0}},
	{{'F', 0}, {'O', 0}, {'T', 0}, {-1, -1}, {'P', 0}, {'K', 0}},
	{{'G', 0}, {'K', 0}, {'P', 0}, {-1, -1}, {'Q', 0}, {'L', 0}},
	{{'H', 0}, {'L', 0}, {'Q', 0}, {-1, -1}, {'R', 0}, {'M', 0}},
	{{'I', 0}, {'M', 0}, {'R', 0}, {-1, -1}, {'S', 0}, {'N', 0}},
	{{'J', 0}, {'N', 0}, {'S', 0}, {-1, -1}, {'T', 0}, {'O', 0}},
	{{'Q', 0}, {'P', 5}, {'T', 4}, {-1, -1}, {'S', 2}, {'R', 1}},
}

// res1FaceConnect：分辨率 1 面沿方向移动到的面或顶点 [面-'A'][方向-1]{目标, 旋转}
var res1FaceConnect = [NumFaces][NumSides][2]int{
	{{1, 4}, {'E', 1}, {2, 0}, {'F', 0}, {3, 0}, {'B', 5}},
	{{1, 5}, {'A', 1}, {3, 0}, {'G', 0}, {4, 0}, {'C', 5}},
	{{1, 0}, {'B', 1}, {4, 0}, {'H', 0}, {5, 0}, {'D', 5}},
	{{1, 1}, {'C', 1}, {5, 0}, {'I', 0}, {6, 0}, {'E', 5}},
	{{1, 2}, {'D', 1}, {6, 0}, {'J', 0}, {2, 0}, {'A', 5}},
	{{'A', 0}, {2, 0}, {'O', 0}, {7, 0}, {'K', 0}, {3, 0}},
	{{'B', 0}, {3, 0}, {'K', 0}, {8, 0}, {'L', 0}, {4, 0}},
	{{'C', 0}, {4, 0}, {'L', 0}, {9, 0}, {'M', 0}, {5, 0}},
	{{'D', 0}, {5, 0}, {'M', 0}, {10, 0}, {'N', 0}, {6, 0}},
	{{'E', 0}, {6, 0}, {'N', 0}, {11, 0}, {'O', 0}, {2, 0}},
	{{3, 0}, {'F', 0}, {7, 0}, {'P', 0}, {8, 0}, {'G', 0}},
	{{4, 0}, {'G', 0}, {8, 0}, {'Q', 0}, {9, 0}, {'H', 0}},
	{{5, 0}, {'H', 0}, {9, 0}, {'R', 0}, {10, 0}, {'I', 0}},
	{{6, 0}, {'I', 0}, {10, 0}, {'S', 0}, {11, 0}, {'J', 0}},
	{{2, 0}, {'J', 0}, {11, 0}, {'T', 0}, {7, 0}, {'F', 0}},
	{{'K', 0}, {7, 0}, {'T', 5}, {12, 1}, {'Q', 1}, {8, 0}},
	{{'L', 0}, {8, 0}, {'P', 5}, {12, 0}, {'R', 1}, {9, 0}},
	{{'M', 0}, {9, 0}, {'Q', 5}, {12, 5}, {'S', 1}, {10, 0}},
	{{'N', 0}, {10, 0}, {'R', 5}, {12, 4}, {'T', 1}, {11, 0}},
	{{'O', 0}, {11, 0}, {'S', 5}, {12, 2}, {'P', 1}, {7, 0}},
}

// res2FaceConnect：分辨率 2 起自面中心踏入顶点时的 [面-'A'][方向-1]{顶点, 首位数字, 旋转}
var res2FaceConnect = [NumFaces][NumSides][3]int{
	{{1, 5, 4}, {1, 4, 4}, {2, 1, 1}, {2, 6, 0}, {3, 3, 0}, {3, 2, 0}},
	{{1, 5, 5}, {1, 4, 5}, {3, 1, 1}, {3, 6, 0}, {4, 3, 0}, {4, 2, 0}},
	{{1, 5, 0}, {1, 4, 0}, {4, 1, 1}, {4, 6, 0}, {5, 3, 0}, {5, 2, 0}},
	{{1, 5, 1}, {1, 4, 1}, {5, 1, 1}, {5, 6, 0}, {6, 3, 0}, {6, 2, 0}},
	{{1, 5, 3}, {1, 4, 2}, {6, 1, 1}, {6, 6, 0}, {2, 3, 0}, {2, 2, 0}},
	{{3, 3, 0}, {2, 6, 0}, {2, 5, 0}, {7, 2, 0}, {7, 1, 0}, {3, 4, 0}},
	{{4, 3, 0}, {3, 6, 0}, {3, 5, 0}, {8, 2, 0}, {8, 1, 0}, {4, 4, 0}},
	{{5, 3, 0}, {4, 6, 0}, {4, 5, 0}, {9, 2, 0}, {9, 1, 0}, {5, 4, 0}},
	{{6, 3, 0}, {5, 6, 0}, {5, 5, 0}, {10, 2, 0}, {10, 1, 0}, {6, 4, 0}},
	{{2, 3, 0}, {6, 6, 0}, {6, 5, 0}, {11, 2, 0}, {11, 1, 0}, {2, 4, 0}},
	{{3, 5, 0}, {3, 4, 0}, {7, 1, 0}, {7, 6, 0}, {8, 3, 0}, {8, 2, 0}},
	{{4, 5, 0}, {4, 4, 0}, {8, 1, 0}, {8, 6, 0}, {9, 3, 0}, {9, 2, 0}},
	{{5, 5, 0}, {5, 4, 0}, {9, 1, 0}, {9, 6, 0}, {10, 3, 0}, {10, 2, 0}},
	{{6, 5, 0}, {6, 4, 0}, {10, 1, 0}, {10, 6, 0}, {11, 3, 0}, {11, 2, 0}},
	{{2, 5, 0}, {2, 4, 0}, {11, 1, 0}, {11, 6, 0}, {7, 3, 0}, {7, 2, 0}},
	{{8, 3, 0}, {7, 6, 0}, {7, 5, 0}, {12, 2, 1}, {12, 1, 1}, {8, 4, 1}},
	{{9, 3, 0}, {8, 6, 0}, {8, 5, 0}, {12, 2, 0}, {12, 1, 0}, {9, 4, 1}},
	{{10, 3, 0}, {9, 6, 0}, {9, 5, 0}, {12, 2, 5}, {12, 1, 5}, {10, 4, 1}},
	{{11, 3, 0}, {10, 6, 0}, {10, 5, 0}, {12, 2, 4}, {12, 1, 4}, {11, 4, 1}},
	{{7, 3, 0}, {11, 6, 0}, {11, 5, 0}, {12, 2, 3}, {12, 1, 2}, {7, 4, 1}},
}

const digitChars = "0123456"

// faceOwningVertex：每个面归属的顶点，用于遍历时去重
var faceOwningVertex = [NumFaces]int{3, 4, 5, 6, 2, 3, 3, 4, 5, 6, 7, 8, 9, 10, 11, 7, 8, 9, 10, 11}

// GapDirection：顶点五边形缺口方向；北半球顶点为 1，南半球为 4
func GapDirection(v int) int {
	if v >= 7 {
		return 4
	}
	return 1
}

func vertexDirectionValid(v, dir int) bool {
	if dir == 0 {
		return true
	}
	return res0Connect[v-1][dir-1][0] != -1
}

// IsValidDirection：五边形在缺口方向上没有邻居
func IsValidDirection(a Address, dir int) bool {
	if a.IsNull() || dir < 0 || dir > NumSides {
		return false
	}
	if dir != 0 && a.IsPentagon() {
		return vertexDirectionValid(a.primary, dir)
	}
	return true
}

// IsValidIndex：顶点地址不得落入缺口扇区；面地址首位必须为 0
func IsValidIndex(a Address) bool {
	if a.sub.IsNull() {
		return true
	}
	if a.IsVertex() {
		return vertexDirectionValid(a.primary, a.sub.Sector())
	}
	return a.sub.Digit(0) == 0
}

// FaceFromVertex：分辨率 1 顶点沿方向 dir 相邻的面；缺口方向返回 -1
func FaceFromVertex(v, dir int) (int, error) {
	if v < FirstVertex || v > LastVertex {
		return -1, fmt.Errorf("vertex %d: %w", v, ErrIndexMath)
	}
	if dir < 1 || dir > NumSides {
		return -1, fmt.Errorf("direction %d: %w", dir, ErrIndexMath)
	}
	return res1VertConnect[v-1][dir-1][0], nil
}

// FaceDirectionFromVertex：自顶点指向面的方向
func FaceDirectionFromVertex(v, face int) (int, bool) {
	for i := 0; i < NumSides; i++ {
		if res1VertConnect[v-1][i][0] == face {
			return i + 1, true
		}
	}
	return 0, false
}

// FaceOwner：面的归属顶点
func FaceOwner(face int) (int, error) {
	if face < FirstFace || face > LastFace {
		return 0, fmt.Errorf("face %d: %w", face, ErrIndexMath)
	}
	return faceOwningVertex[face-FirstFace], nil
}

// FaceIsUp：方向 1 指向顶点时面朝上
func FaceIsUp(face int) bool {
	return res1FaceConnect[face-FirstFace][0][0] < FirstFace
}

// FaceVertices：面的三个顶点，逆时针，首个为朝上（方向 1）或朝下（方向 4）的顶点
func FaceVertices(face int) [3]int {
	row := res1FaceConnect[face-FirstFace]
	if FaceIsUp(face) {
		return [3]int{row[0][0], row[2][0], row[4][0]}
	}
	return [3]int{row[3][0], row[5][0], row[1][0]}
}

// Dir1Angle：方向 1 相对面底边的逆时针角
func Dir1Angle(face int) float64 {
	if FaceIsUp(face) {
		return math.Pi / 2
	}
	return -math.Pi / 2
}

// DirectionFromAngle：相对方向 1 的逆时针角所在的 60° 方向桶
func DirectionFromAngle(angle float64) int {
	angle = math.Mod(angle, 2*math.Pi)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	for d, edge := range directionEdges {
		if angle < edge {
			return d + 1
		}
	}
	return NumSides
}

// directionEdges：各方向桶的上界；直接比较避免除法在 60° 整倍数处截断
var directionEdges = [NumSides]float64{
	math.Pi / 3, 2 * math.Pi / 3, math.Pi, 4 * math.Pi / 3, 5 * math.Pi / 3, 2 * math.Pi,
}

// work：地址运算过程中的可变副本
type work struct {
	primary int
	digits  []byte
}

func newWork(a Address) *work {
	return &work{primary: a.primary, digits: []byte(a.sub)}
}

func (w *work) resolution() int {
	if len(w.digits) == 0 {
		return 1
	}
	return len(w.digits) + 1
}

func (w *work) address() Address {
	return Address{primary: w.primary, sub: SubIndex(w.digits)}
}

func (w *work) isVertex() bool { return w.primary >= FirstVertex && w.primary <= LastVertex }
func (w *work) isFace() bool   { return w.primary >= FirstFace && w.primary <= LastFace }

func (w *work) rotate(n int) { rotateDigits(w.digits, n) }

func (w *work) stripLeft() int {
	if len(w.digits) == 0 {
		return 0
	}
	d := int(w.digits[0] - '0')
	w.digits = w.digits[1:]
	return d
}

func (w *work) res0Move(dir int) bool {
	if dir == 0 || !w.isVertex() {
		return false
	}
	row := res0Connect[w.primary-1][dir-1]
	if row[0] == -1 {
		return false
	}
	w.primary = row[0]
	if row[1] > 0 {
		w.rotate(row[1])
	}
	return true
}

func (w *work) res1Move(dir int) bool {
	if dir == 0 {
		return false
	}
	var row [2]int
	switch {
	case w.isVertex():
		row = res1VertConnect[w.primary-1][dir-1]
	case w.isFace():
		row = res1FaceConnect[w.primary-FirstFace][dir-1]
	default:
		return false
	}
	if IsValidPrimary(row[0]) {
		w.primary = row[0]
		if row[1] > 0 {
			w.rotate(row[1])
		}
		return true
	}
	next := dir - 1
	if next <= 0 {
		next = NumSides
	}
	w.res1Move(next)
	w.rotate(-1)
	return true
}

func (w *work) res2Move(dir int) {
	if dir == 0 || !w.isFace() {
		return
	}
	row := res2FaceConnect[w.primary-FirstFace][dir-1]
	w.primary = row[0]
	if len(w.digits) > 0 {
		w.digits[0] = byte(row[1]) + '0'
	}
	if row[2] > 0 {
		w.rotate(row[2])
	}
}

// overflowCorrect：运算结果越出面或顶点单元时，按位数增长量改写主分辨率
func (w *work) overflowCorrect(res int) error {
	if res > MaxResolution || res < MinSubResolution || w.primary == 0 {
		return nil
	}
	switch w.resolution() - res {
	case 0:
		if w.isFace() {
			if d := int(w.digits[0] - '0'); d != 0 {
				w.res2Move(d)
			}
		}
	case 1:
		w.res1Move(w.stripLeft())
	case 2:
		d := w.stripLeft()
		w.stripLeft()
		w.res0Move(d)
	default:
		return fmt.Errorf("overflow on %s: %w", w.address(), ErrIndexMath)
	}
	return nil
}

// gapCorrect：结果落入顶点缺口扇区时旋转一格，方向取决于起点扇区
func (w *work) gapCorrect(start Address) {
	if w.primary == 0 || w.resolution() < MinSubResolution || !w.isVertex() {
		return
	}
	sector := SubIndex(w.digits).Sector()
	if vertexDirectionValid(w.primary, sector) {
		return
	}
	offset := start.sub.Sector() + 1
	if offset > NumSides {
		offset = 1
	}
	if offset > sector {
		w.rotate(-1)
	} else {
		w.rotate(1)
	}
}

// Add：两个同主分辨率地址在绝对分辨率 res 上相加
// 约束：较短的操作数左侧补 0；结果越出主单元时跨面修正，落入缺口时旋转
func Add(first, second Address, res int) (Address, error) {
	if first.IsNull() || second.IsNull() {
		return Null, fmt.Errorf("add %s + %s: null operand: %w", first, second, ErrIndexMath)
	}
	if res < MinSubResolution {
		return Null, fmt.Errorf("add at resolution %d: %w", res, ErrIndexMath)
	}
	if first.primary != second.primary {
		return Null, fmt.Errorf("add %s + %s: primaries differ: %w", first, second, ErrIndexMath)
	}
	if first.Resolution() > res || second.Resolution() > res {
		return Null, fmt.Errorf("add %s + %s at resolution %d: %w", first, second, res, ErrIndexMath)
	}
	rel := res - MinSubResolution
	a := first.sub.AdjustLeft(rel)
	b := second.sub.AdjustLeft(rel)

	w := &work{primary: first.primary, digits: addClass([]byte(a), []byte(b), classOf(res))}
	if err := w.overflowCorrect(res); err != nil {
		return Null, err
	}
	w.gapCorrect(Address{primary: first.primary, sub: a})
	return w.address(), nil
}

// Move：沿方向 dir 移动一个单元；方向无效（五边形缺口或 0 方向于低分辨率）返回 NULL
func Move(start Address, dir int) (Address, error) {
	if start.IsNull() || dir < 0 || dir > NumSides {
		return Null, nil
	}
	res := start.Resolution()
	if res >= MinSubResolution {
		if !IsValidDirection(start, dir) {
			return Null, nil
		}
		w := &work{primary: start.primary, digits: moveDigits([]byte(start.sub), dir)}
		if err := w.overflowCorrect(res); err != nil {
			return Null, err
		}
		w.gapCorrect(start)
		return w.address(), nil
	}
	w := newWork(start)
	if !w.res1Move(dir) {
		return Null, nil
	}
	return w.address(), nil
}

// Rotate：数字串整体逆时针旋转 n 个扇区（n 为负为顺时针），不做缺口修正
func Rotate(a Address, n int) Address {
	w := newWork(a)
	w.rotate(n)
	return w.address()
}

// Parent：中心父单元
func Parent(a Address) (Address, error) {
	switch r := a.Resolution(); {
	case r > MinSubResolution:
		return Address{primary: a.primary, sub: a.sub[:len(a.sub)-1]}, nil
	case r == MinSubResolution:
		return Address{primary: a.primary}, nil
	default:
		return Null, fmt.Errorf("parent of %s: %w", a, ErrIndexResolution)
	}
}

// Children：下一分辨率的子单元；首个为中心子单元，其后为顶点子单元（按方向升序）
func Children(a Address) []Address {
	if a.IsNull() || a.Resolution() >= MaxResolution {
		return nil
	}
	centroid := Address{primary: a.primary, sub: a.sub + "0"}
	out := []Address{centroid}
	if !a.HasVertexChildren() {
		return out
	}
	for d := 1; d <= NumSides; d++ {
		if !IsValidDirection(a, d) {
			continue
		}
		out = append(out, Address{primary: a.primary, sub: a.sub + SubIndex(digitChars[d:d+1])})
	}
	return out
}

// Neighbours：六个（五边形为五个）方向上的相邻单元
func Neighbours(a Address) ([]Address, error) {
	var out []Address
	for d := 1; d <= NumSides; d++ {
		n, err := Move(a, d)
		if err != nil {
			return nil, err
		}
		if !n.IsNull() {
			out = append(out, n)
		}
	}
	return out, nil
}

// Resolution2Cells：分辨率 2 的全部 92 个单元（12 五边形、60 顶点子单元、20 面中心）
func Resolution2Cells() []Address {
	out := make([]Address, 0, 92)
	for v := FirstVertex; v <= LastVertex; v++ {
		out = append(out, Children(Vertex(v))...)
	}
	for f := FirstFace; f <= LastFace; f++ {
		out = append(out, Children(Face(byte(f)))...)
	}
	return out
}

// PolarToAddress：面 face 上相对面中心的极坐标 → 分辨率 res 的地址
// 约束：角度相对面底边逆时针；半径以分辨率 0 中心距（即二十面体边长）为单位；res ≥ 2
// 结果所在的面或顶点可能不是 face
func PolarToAddress(p geo.Polar, res int, face int) (Address, error) {
	if face < FirstFace || face > LastFace {
		return Null, fmt.Errorf("face %d: %w", face, ErrIndexMath)
	}
	if res < MinSubResolution || res > MaxResolution {
		return Null, fmt.Errorf("polar to index at resolution %d: %w", res, ErrIndexResolution)
	}
	tmp := geo.Polar{Radius: p.Radius, Angle: p.Angle - Dir1Angle(face)}
	relRes := res - MinSubResolution
	rel, err := polarToDigits(tmp, relRes, true)
	if err != nil {
		return Null, err
	}

	w := &work{primary: face, digits: rel}
	if len(rel)-1 == relRes {
		dir, pos := SubIndex(rel).MostSignificant()
		if pos == relRes {
			w.digits[0] = '0'
			w.res2Move(dir)
		}
	} else {
		dir := w.stripLeft()
		if dir < 1 || dir > NumSides || len(w.digits)-1 != relRes {
			return Null, fmt.Errorf("polar %+v on face %c: overflow: %w", p, face, ErrIndexMath)
		}
		row := res1FaceConnect[face-FirstFace][dir-1]
		w.primary = row[0]
		rot := 0
		if row[0] >= FirstFace || w.primary == PoleNorth || w.primary == PoleSouth {
			rot = row[1]
		}
		if rot != 0 {
			w.rotate(rot)
		}
	}

	if a := w.address(); !IsValidIndex(a) {
		rot := 1
		if !a.IsPolar() && math.Abs(p.Angle) < math.Pi/2 {
			rot = -1
		}
		w.rotate(rot)
	}
	return w.address(), nil
}

// AddressToPolar：地址 → 相对某个面中心的极坐标及该面
// 约束：顶点地址取其所在扇区相邻的面作参考
func AddressToPolar(a Address) (geo.Polar, int, error) {
	if a.Resolution() < 1 {
		return geo.Polar{}, 0, fmt.Errorf("index to polar %s: %w", a, ErrIndexResolution)
	}
	polar := digitsToPolar([]byte(a.sub))
	if a.IsFace() {
		polar.Angle += Dir1Angle(a.primary)
		return polar, a.primary, nil
	}

	v := a.primary
	dir := DirectionFromAngle(polar.Angle + math.Pi/6)
	face := res1VertConnect[v-1][dir-1][0]
	if face == -1 {
		dir--
		if dir <= 0 {
			dir = NumSides
		}
		face = res1VertConnect[v-1][dir-1][0]
		polar.Angle -= math.Pi / 3
	}

	dir, _ = FaceDirectionFromVertex(v, face)
	if a.IsPolar() {
		polar.Angle += math.Pi / 3 * float64(res1VertConnect[v-1][dir-1][1])
		if v == PoleNorth {
			dir = 1
		} else {
			dir = 4
		}
	}

	vertexPolar := geo.Polar{Radius: CircumRadius(0)}
	switch dir {
	case 1, 4:
		vertexPolar.Angle = math.Pi / 2
	case 2, 5:
		vertexPolar.Angle = -math.Pi / 6
	case 3, 6:
		vertexPolar.Angle = -5 * math.Pi / 6
	}

	if FaceIsUp(face) {
		polar.Angle += math.Pi / 2
	} else {
		polar.Angle -= math.Pi / 2
	}
	return vertexPolar.Add(polar), face, nil
}
