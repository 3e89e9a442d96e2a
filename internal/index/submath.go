package index

import (
	"fmt"
	"math"

	"pyxgrid/internal/geo"
)

// 数字串算术：孔径 3 的六边形加法、乘法、旋转与极坐标互转
// 背景：Class I/II 两类网格交替出现，加法按两位一组（pair）映射到整数格点后逐组除三进位
// 约束：本文件内的函数操作 ASCII 数字切片，调用方负责拷贝；分辨率均为相对分辨率（位数 - 1）

const (
	// MinSubResolution：数字串第一位所在的绝对分辨率
	MinSubResolution = 2
	// MaxResolution：最大绝对分辨率
	MaxResolution = 40
	// NumSides：六边形边数
	NumSides = 6
)

type hexClass int

const (
	classI hexClass = iota
	classII
)

func classOf(res int) hexClass {
	if res&1 == 0 {
		return classI
	}
	return classII
}

var interCell [64]float64

func init() {
	d := 1.0
	for i := range interCell {
		interCell[i] = d
		d /= math.Sqrt(3)
	}
}

// InterCellDistance：分辨率 r 相邻单元中心距（以分辨率 0 中心距为单位）
func InterCellDistance(r int) float64 {
	if r < 0 {
		return math.Pow(math.Sqrt(3), float64(-r))
	}
	if r < len(interCell) {
		return interCell[r]
	}
	return math.Pow(math.Sqrt(3), -float64(r))
}

// CircumRadius：分辨率 r 六边形外接圆半径
func CircumRadius(r int) float64 { return InterCellDistance(r + 1) }

// InRadius：分辨率 r 六边形内切圆半径
func InRadius(r int) float64 { return InterCellDistance(r) / 2 }

// RotateDirection：方向逆时针旋转 n 个 60°（n 为负表示顺时针）；0 方向不动
func RotateDirection(dir, n int) int {
	if dir == 0 {
		return 0
	}
	n = ((n % NumSides) + NumSides) % NumSides
	return ((dir + n - 1) % NumSides) + 1
}

// NegateDirection：反方向
func NegateDirection(dir int) int {
	if dir == 0 {
		return 0
	}
	return RotateDirection(dir, 3)
}

// rotateDigits：对每个非零位逆时针旋转 n 个扇区
func rotateDigits(b []byte, n int) {
	n = ((n % NumSides) + NumSides) % NumSides
	if n == 0 {
		return
	}
	for i, c := range b {
		if c != '0' {
			b[i] = byte(((int(c-'0')-1+n)%NumSides)+1) + '0'
		}
	}
}

func adjustLeft(b *[]byte, target int) {
	for len(*b)-1 < target {
		*b = append([]byte{'0'}, *b...)
	}
	for len(*b)-1 > target && (*b)[0] == '0' {
		*b = (*b)[1:]
	}
}

func stripRightPair(b *[]byte) int {
	pair := 0
	if n := len(*b); n > 0 {
		pair = int((*b)[n-1] - '0')
		*b = (*b)[:n-1]
	}
	if n := len(*b); n > 0 {
		pair |= int((*b)[n-1]-'0') << 4
		*b = (*b)[:n-1]
	}
	return pair
}

func appendPair(b *[]byte, pair int) {
	*b = append(*b, byte(pair>>4&0xF)+'0', byte(pair&0xF)+'0')
}

// 两位组合与格点整数坐标的对应表
var pairInts = map[int][2]int{
	0x00: {0, 0},
	0x01: {2, 0},
	0x02: {1, 1},
	0x03: {-1, 1},
	0x04: {-2, 0},
	0x05: {-1, -1},
	0x06: {1, -1},
	0x10: {3, 1},
	0x20: {0, 2},
	0x30: {-3, 1},
	0x40: {-3, -1},
	0x50: {0, -2},
	0x60: {3, -1},
}

var intsPair = func() map[[2]int]int {
	m := make(map[[2]int]int, len(pairInts))
	for p, v := range pairInts {
		m[v] = p
	}
	return m
}()

func pairToInts(pair int) (int, int) {
	v := pairInts[pair]
	return v[0], v[1]
}

func intsToPair(a, b int) int { return intsPair[[2]int{a, b}] }

func floorDiv3(x int) int {
	if x < 0 {
		return (x - 2) / 3
	}
	return x / 3
}

// divideByThree：(a,b) 除以 3，返回商与落在规范余数集合中的余数
func divideByThree(a, b int) (qa, qb, r, s int) {
	qa, qb = floorDiv3(a), floorDiv3(b)
	r, s = a-3*qa, b-3*qb
	switch {
	case s == r+1:
		s -= 3
		qb++
	case s == r-1:
		r -= 3
		qa++
	case r == 2 && s == 2:
		r, s = -1, -1
		qa++
		qb++
	}
	return qa, qb, r, s
}

// addClass：按指定类别逐组相加
// 约束：结果分辨率尽量与两个加数中较大者一致，溢出时会多出前导位
func addClass(first, second []byte, class hexClass) []byte {
	a := append([]byte(nil), first...)
	b := append([]byte(nil), second...)
	maxRes := max(len(a)-1, len(b)-1)
	if class == classII {
		a = append(a, '0')
		b = append(b, '0')
	}

	a1, b1 := pairToInts(stripRightPair(&a))
	ta, tb := pairToInts(stripRightPair(&b))
	a1 += ta
	b1 += tb

	var prefix []byte
	var rev []byte
	numPairs := maxRes / 2
	for k := 0; k <= numPairs || a1 != 0 || b1 != 0; {
		if a1 == 0 && b1 == 0 {
			if len(a) == 0 {
				appendPair(&b, 0)
				prefix = b
				break
			}
			if len(b) == 0 {
				appendPair(&a, 0)
				prefix = a
				break
			}
		}
		k++

		var r1, s1 int
		a1, b1, r1, s1 = divideByThree(a1, b1)

		a2, b2 := pairToInts(stripRightPair(&a))
		ta, tb = pairToInts(stripRightPair(&b))
		a1 += a2 + ta
		b1 += b2 + tb

		_, _, r2, _ := divideByThree(a1, b1)

		low, high := byte('0'), byte('0')
		switch {
		case s1 == 2 && (r2 == 1 || r2 == -2):
			high = '6'
			a1--
			b1++
		case s1 == 2 && (r2 == 2 || r2 == -1):
			high = '4'
			a1++
			b1++
		case s1 == -2 && (r2 == 1 || r2 == -2):
			high = '1'
			a1--
			b1--
		case s1 == -2 && (r2 == 2 || r2 == -1):
			high = '3'
			a1++
			b1--
		default:
			p := intsToPair(r1, s1)
			low = byte(p&0xF) + '0'
			high = byte(p>>4&0xF) + '0'
		}
		rev = append(rev, low, high)
	}

	sum := make([]byte, 0, len(prefix)+len(rev))
	sum = append(sum, prefix...)
	for i := len(rev) - 1; i >= 0; i-- {
		sum = append(sum, rev[i])
	}
	if class == classII && len(sum) > 0 {
		sum = sum[:len(sum)-1]
	}
	if maxRes >= 0 {
		adjustLeft(&sum, maxRes)
	}
	return sum
}

// addAt：在相对分辨率 res 的网格上相加
// 约束：grow 为 false 时结果位数增长（越出网格）返回 ErrIndexMath
func addAt(first, second []byte, res int, grow bool) ([]byte, error) {
	sum := addClass(first, second, classOf(res))
	for len(sum)-1 > res {
		if sum[0] == '0' {
			sum = sum[1:]
			continue
		}
		if !grow {
			return nil, fmt.Errorf("add %s + %s: resolution increased: %w", first, second, ErrIndexMath)
		}
		break
	}
	return sum, nil
}

// moveDigits：沿方向 dir 平移一个单元（可能越出当前网格）
func moveDigits(start []byte, dir int) []byte {
	addend := []byte{byte(dir) + '0'}
	return addClass(start, addend, classOf(len(start)-1))
}

var multiplicationKeys = [7]int{0x000, 0x104, 0x205, 0x306, 0x401, 0x502, 0x603}

// multiply：沿方向 dir 连续移动 factor 次所得的数字串
func multiply(factor, dir, res int) ([]byte, error) {
	if dir < 0 || dir > NumSides {
		return nil, fmt.Errorf("multiply: bad direction %d: %w", dir, ErrIndexMath)
	}
	if factor < 0 {
		dir = NegateDirection(dir)
		factor = -factor
	}
	key := multiplicationKeys[dir]
	values := [3]byte{byte(key>>8&0xF) + '0', byte(key&0xF) + '0', '0'}

	var rev []byte
	mult := 1
	for factor > 0 {
		if len(rev) >= MaxResolution+2 {
			return nil, fmt.Errorf("multiply %d x %d: overflow: %w", factor, dir, ErrIndexMath)
		}
		if len(rev)&1 == 1 {
			rev = append(rev, '0')
			continue
		}
		rev = append(rev, values[((factor-1)/mult)%3])
		factor -= mult
		mult *= 3
	}

	out := make([]byte, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	if res > len(out)-1 {
		adjustLeft(&out, res)
	}
	return out, nil
}

// polarToUV：方向 1 基准、以单元中心距为单位的极坐标 → 沿方向 1/2 的步数
func polarToUV(p geo.Polar) (u, v float64) {
	x, y := p.XY()

	ry := 2 * math.Sqrt(3) / 3 * y
	r := math.Round(ry)
	rd := ry - r
	odd := int(r)%2 != 0

	cx := x
	if odd {
		cx = x - 0.5
	}
	c := math.Round(cx)
	cd := cx - c

	if absrd := math.Abs(rd); absrd > 1.0/3 {
		if abscd := math.Abs(cd); abscd > 0.25 && (0.5-absrd)/(abscd-0.25) < 2.0/3 {
			if odd {
				if cd > 0 {
					c++
				}
			} else if cd < 0 {
				c--
			}
			if rd < 0 {
				r--
			} else {
				r++
			}
		}
	}

	ri := int(r)
	if ri < 0 {
		ri--
	}
	return c - float64(ri/2), r
}

// polarToDigits：极坐标（半径以分辨率 0 中心距为单位，角度相对方向 1）→ 相对分辨率 res 的数字串
func polarToDigits(p geo.Polar, res int, grow bool) ([]byte, error) {
	rel := p
	if classOf(res) == classI {
		rel.Angle += math.Pi / 6
	}
	rel.Radius /= InterCellDistance(res + MinSubResolution)

	u, v := polarToUV(rel)
	a, err := multiply(int(u), 1, res)
	if err != nil {
		return nil, err
	}
	b, err := multiply(int(v), 2, res)
	if err != nil {
		return nil, err
	}
	return addAt(a, b, res, grow)
}

// digitsToPolar：数字串 → 相对原点的极坐标（角度相对方向 1）
func digitsToPolar(digits []byte) geo.Polar {
	var f [12]float64
	class := classI
	for i, c := range digits {
		if c != '0' {
			d := int(c - '0')
			if class == classII {
				f[d-1] += InterCellDistance(i + MinSubResolution)
			} else {
				f[d+NumSides-1] += InterCellDistance(i + MinSubResolution)
			}
		}
		if class == classI {
			class = classII
		} else {
			class = classI
		}
	}

	d1, d2, d3 := f[0]-f[3], f[1]-f[4], f[2]-f[5]
	x := d1 + (d2-d3)*math.Cos(math.Pi/3)
	y := (d2 + d3) * math.Sin(math.Pi/3)

	d1, d2, d3 = f[6]-f[9], f[7]-f[10], f[8]-f[11]
	x += (d1 + d2) * math.Cos(math.Pi/6)
	y += d3 + (d2-d1)*math.Sin(math.Pi/6)

	return geo.PolarFromXY(x, y)
}
