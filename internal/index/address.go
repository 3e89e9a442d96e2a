// 包 index：PYXIS 层级单元地址（Address）、数字串算术及二十面体地址运算
// 约束：地址为值类型；所有修改方法返回新值，不共享底层存储
package index

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// NullLabel：NULL 地址的文本形式
	NullLabel = "NULL"

	FirstVertex = 1
	LastVertex  = 12
	FirstFace   = 'A'
	LastFace    = 'T'
	// PoleNorth / PoleSouth：两个极点顶点
	PoleNorth = 1
	PoleSouth = 12

	NumVertices = 12
	NumFaces    = 20
)

// Address：主分辨率（面 A..T 或顶点 1..12）加数字串
// 零值即 NULL 地址
type Address struct {
	primary int
	sub     SubIndex
}

// Null：NULL 地址
var Null = Address{}

// IsValidPrimary：主分辨率取值是否合法
func IsValidPrimary(p int) bool {
	return (p >= FirstVertex && p <= LastVertex) || (p >= FirstFace && p <= LastFace)
}

// New：由主分辨率与数字串构造并校验
func New(primary int, sub SubIndex) (Address, error) {
	if !IsValidPrimary(primary) {
		return Null, fmt.Errorf("primary %d: %w", primary, ErrIndexFormat)
	}
	if _, err := ParseSubIndex(string(sub)); err != nil {
		return Null, err
	}
	a := Address{primary: primary, sub: sub}
	if !IsValidIndex(a) {
		return Null, fmt.Errorf("index %s: %w", a, ErrIndexFormat)
	}
	return a, nil
}

// Vertex：分辨率 1 的顶点单元
func Vertex(v int) Address { return Address{primary: v} }

// Face：分辨率 1 的面单元；f 为面字母
func Face(f byte) Address { return Address{primary: int(f)} }

// Parse：解析 "PRIMARY"、"PRIMARY-DIGITS" 或 "NULL"
func Parse(s string) (Address, error) {
	if s == "" || s == NullLabel {
		return Null, nil
	}
	var primaryStr, digits string
	if i := strings.IndexByte(s, '-'); i >= 0 {
		if i == 0 {
			return Null, fmt.Errorf("index %q: missing primary: %w", s, ErrIndexFormat)
		}
		primaryStr, digits = s[:i], s[i+1:]
		if digits == "" {
			return Null, fmt.Errorf("index %q: empty digits: %w", s, ErrIndexFormat)
		}
	} else {
		if len(s) > 2 {
			return Null, fmt.Errorf("index %q: %w", s, ErrIndexFormat)
		}
		primaryStr = s
	}

	primary := 0
	if len(primaryStr) == 1 && primaryStr[0] >= 'A' && primaryStr[0] <= 'Z' {
		primary = int(primaryStr[0])
	} else {
		// 约束：顶点序号只接受规范十进制，拒绝符号与前导零
		if primaryStr == "" || primaryStr[0] < '1' || primaryStr[0] > '9' {
			return Null, fmt.Errorf("index %q: bad primary: %w", s, ErrIndexFormat)
		}
		n, err := strconv.Atoi(primaryStr)
		if err != nil {
			return Null, fmt.Errorf("index %q: bad primary: %w", s, ErrIndexFormat)
		}
		primary = n
	}
	if !IsValidPrimary(primary) {
		return Null, fmt.Errorf("index %q: primary out of range: %w", s, ErrIndexFormat)
	}
	sub, err := ParseSubIndex(digits)
	if err != nil {
		return Null, fmt.Errorf("index %q: %w", s, err)
	}
	a := Address{primary: primary, sub: sub}
	if !IsValidIndex(a) {
		return Null, fmt.Errorf("index %q: invalid descent: %w", s, ErrIndexFormat)
	}
	return a, nil
}

// MustParse：解析失败时 panic，仅用于常量与测试
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	if a.IsNull() {
		return NullLabel
	}
	var sb strings.Builder
	if a.IsFace() {
		sb.WriteByte(byte(a.primary))
	} else {
		sb.WriteString(strconv.Itoa(a.primary))
	}
	if !a.sub.IsNull() {
		sb.WriteByte('-')
		sb.WriteString(string(a.sub))
	}
	return sb.String()
}

// MarshalText / UnmarshalText：JSON 等编码沿用显示文本
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// WriteStream：流式格式，数值主分辨率 + 空格 + 数字串；NULL 写作 "0"
func (a Address) WriteStream(w io.Writer) error {
	if a.IsNull() {
		_, err := fmt.Fprint(w, 0)
		return err
	}
	_, err := fmt.Fprintf(w, "%d %s", a.primary, a.sub)
	return err
}

// ReadStream：读取 WriteStream 写出的一个地址
// 约束：数字串为空时写出的是 "P "，读取时按空白分词，遇换行视为空数字串
func ReadStream(r *bufio.Reader) (Address, error) {
	var p int
	if _, err := fmt.Fscan(r, &p); err != nil {
		return Null, fmt.Errorf("read primary: %w", err)
	}
	if p == 0 {
		return Null, nil
	}
	if !IsValidPrimary(p) {
		return Null, fmt.Errorf("stream primary %d: %w", p, ErrIndexFormat)
	}
	digits, err := readToken(r)
	if err != nil {
		return Null, err
	}
	return New(p, SubIndex(digits))
}

func readToken(r *bufio.Reader) (string, error) {
	for {
		c, err := r.ReadByte()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		if c == '\n' {
			return "", nil
		}
		if c != ' ' && c != '\t' && c != '\r' {
			if err := r.UnreadByte(); err != nil {
				return "", err
			}
			break
		}
	}
	var sb strings.Builder
	for {
		c, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			if err := r.UnreadByte(); err != nil {
				return "", err
			}
			break
		}
		sb.WriteByte(c)
	}
	return sb.String(), nil
}

func (a Address) Primary() int      { return a.primary }
func (a Address) SubIndex() SubIndex { return a.sub }

func (a Address) IsNull() bool   { return a.primary == 0 }
func (a Address) IsVertex() bool { return a.primary >= FirstVertex && a.primary <= LastVertex }
func (a Address) IsFace() bool   { return a.primary >= FirstFace && a.primary <= LastFace }

// IsPolar：是否位于两个极点顶点之一；NULL 返回 false
func (a Address) IsPolar() bool { return a.primary == PoleNorth || a.primary == PoleSouth }

// Resolution：NULL 为 -1，仅主分辨率为 1，否则为位数 + 1
func (a Address) Resolution() int {
	if a.IsNull() {
		return -1
	}
	if a.sub.IsNull() {
		return 1
	}
	return len(a.sub) + 1
}

// SetResolution：补 0 或截断到分辨率 n
func (a Address) SetResolution(n int) (Address, error) {
	if a.IsNull() {
		return a, fmt.Errorf("set resolution on null index: %w", ErrIndexResolution)
	}
	switch {
	case n <= 0:
		return a, fmt.Errorf("set resolution %d: %w", n, ErrIndexResolution)
	case n == 1:
		return Address{primary: a.primary}, nil
	case n > MaxResolution:
		return a, fmt.Errorf("set resolution %d: %w", n, ErrIndexResolution)
	}
	return Address{primary: a.primary, sub: a.sub.SetResolution(n - MinSubResolution)}, nil
}

// IncrementResolution：追加一位 0
func (a Address) IncrementResolution() (Address, error) {
	if a.IsNull() {
		return a, fmt.Errorf("increment null index: %w", ErrIndexResolution)
	}
	if len(a.sub)+1 >= MaxResolution {
		return a, fmt.Errorf("increment %s past %d: %w", a, MaxResolution, ErrIndexResolution)
	}
	return Address{primary: a.primary, sub: a.sub + "0"}, nil
}

// DecrementResolution：移除最低位
func (a Address) DecrementResolution() (Address, error) {
	if a.IsNull() {
		return a, fmt.Errorf("decrement null index: %w", ErrIndexResolution)
	}
	if a.sub.IsNull() {
		return a, fmt.Errorf("decrement %s below resolution 1: %w", a, ErrIndexResolution)
	}
	return Address{primary: a.primary, sub: a.sub[:len(a.sub)-1]}, nil
}

// IsPentagon：顶点且全部数字为 0
func (a Address) IsPentagon() bool {
	if !a.IsVertex() {
		return false
	}
	return a.sub.IsNull() || a.sub.IsAtOrigin(len(a.sub))
}

// IsPentagonAt：前 n 位构成的祖先是否为五边形
func (a Address) IsPentagonAt(n int) bool {
	if !a.IsVertex() {
		return false
	}
	if a.sub.IsNull() || n == 0 {
		return true
	}
	return a.sub.IsAtOrigin(n)
}

// HasVertexChildren：是否为父单元的中心子单元（拥有顶点子单元）
func (a Address) HasVertexChildren() bool {
	if a.IsNull() {
		return false
	}
	if !a.sub.IsNull() {
		return a.sub.HasVertexChildren()
	}
	return a.IsVertex()
}

// IsAncestorOf：同主分辨率且数字串为前缀；对非 NULL 地址自反
func (a Address) IsAncestorOf(o Address) bool {
	if a.IsNull() || o.IsNull() || a.primary != o.primary {
		return false
	}
	if a.sub.IsNull() {
		return true
	}
	return a.sub.IsAncestorOf(o.sub)
}

func (a Address) IsDescendantOf(o Address) bool { return o.IsAncestorOf(a) }

// Compare：先按主分辨率数值，再按数字串字典序
func (a Address) Compare(o Address) int {
	switch {
	case a.primary < o.primary:
		return -1
	case a.primary > o.primary:
		return 1
	}
	return strings.Compare(string(a.sub), string(o.sub))
}

func (a Address) Less(o Address) bool { return a.Compare(o) < 0 }

// MaxChildCount：前 n 位构成的祖先单元最多拥有的子单元数
func (a Address) MaxChildCount(n int) int {
	if n > len(a.sub) {
		n = len(a.sub)
	}
	if n <= 0 {
		if a.IsVertex() {
			return 6
		}
		return 1
	}
	if a.sub[n-1] != '0' {
		return 1
	}
	if a.IsPentagonAt(n) {
		return 6
	}
	return 7
}

// NumSides：五边形 5，其余 6
func (a Address) NumSides() int {
	if a.IsPentagon() {
		return NumSides - 1
	}
	return NumSides
}

// Add：在左操作数分辨率上相加，结果不超过左操作数分辨率
func (a Address) Add(o Address) (Address, error) {
	return Add(a, o, a.Resolution())
}

func (a Address) withSub(b []byte) Address {
	return Address{primary: a.primary, sub: SubIndex(b)}
}
