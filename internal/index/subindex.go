package index

import (
	"fmt"
	"strings"
)

// SubIndex：主分辨率之下的数字串（'0'..'6'）
// 约束：相邻两位不能同时为非零；以字符串存储，拷贝不共享底层数据
type SubIndex string

// ParseSubIndex：解析并校验数字串
func ParseSubIndex(s string) (SubIndex, error) {
	if len(s) >= MaxResolution {
		return "", fmt.Errorf("sub index %q too long: %w", s, ErrIndexFormat)
	}
	prev := byte('0')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '6' {
			return "", fmt.Errorf("sub index %q: bad digit %q: %w", s, c, ErrIndexFormat)
		}
		if c != '0' && prev != '0' {
			return "", fmt.Errorf("sub index %q: consecutive vertex digits: %w", s, ErrIndexFormat)
		}
		prev = c
	}
	return SubIndex(s), nil
}

func (s SubIndex) IsNull() bool { return len(s) == 0 }

// Resolution：相对分辨率，空串为 -1
func (s SubIndex) Resolution() int { return len(s) - 1 }

// Digit：第 i 位（自左向右，0 起）；越界返回 0
func (s SubIndex) Digit(i int) int {
	if i < 0 || i >= len(s) {
		return 0
	}
	return int(s[i] - '0')
}

// MostSignificant：最高位非零数字及其位置
// 约束：位置自最低位起算（最低位为 0）；全零或空串时返回 (0, -1)
func (s SubIndex) MostSignificant() (digit, pos int) {
	for i := 0; i < len(s); i++ {
		if s[i] != '0' {
			return int(s[i] - '0'), len(s) - 1 - i
		}
	}
	return 0, -1
}

// Sector：所在六边形扇区，即最高位非零数字；位于原点时为 0
func (s SubIndex) Sector() int {
	d, _ := s.MostSignificant()
	return d
}

// HasVertexChildren：末位为 0 的单元拥有顶点子单元
func (s SubIndex) HasVertexChildren() bool {
	return len(s) > 0 && s[len(s)-1] == '0'
}

// IsAtOrigin：前 n 位（n 超出长度时取全部）是否全为 0；n ≤ 0 或空串返回 false
func (s SubIndex) IsAtOrigin(n int) bool {
	if len(s) == 0 || n <= 0 {
		return false
	}
	if n > len(s) {
		n = len(s)
	}
	for i := 0; i < n; i++ {
		if s[i] != '0' {
			return false
		}
	}
	return true
}

// IsAncestorOf：s 是 o 的前缀（二者均非空）
func (s SubIndex) IsAncestorOf(o SubIndex) bool {
	if len(s) == 0 || len(o) == 0 {
		return false
	}
	return strings.HasPrefix(string(o), string(s))
}

// StripLeft：去掉最高位，返回该位数字
func (s SubIndex) StripLeft() (int, SubIndex) {
	if len(s) == 0 {
		return 0, s
	}
	return int(s[0] - '0'), s[1:]
}

// StripRight：去掉最低位，返回该位数字
func (s SubIndex) StripRight() (int, SubIndex) {
	if len(s) == 0 {
		return 0, s
	}
	return int(s[len(s)-1] - '0'), s[:len(s)-1]
}

// AdjustLeft：在左侧补 0 或剥离前导 0，使相对分辨率接近 target
// 约束：遇到非零前导位即停止剥离
func (s SubIndex) AdjustLeft(target int) SubIndex {
	b := []byte(s)
	adjustLeft(&b, target)
	return SubIndex(b)
}

// SetResolution：在右侧补 0 或截断到相对分辨率 r
func (s SubIndex) SetResolution(r int) SubIndex {
	n := r + 1
	if n <= 0 {
		return ""
	}
	if n <= len(s) {
		return s[:n]
	}
	return s + SubIndex(strings.Repeat("0", n-len(s)))
}
