package index

import "errors"

var (
	// ErrIndexFormat：地址字符串格式错误或结构校验失败
	ErrIndexFormat = errors.New("index format error")
	// ErrIndexResolution：分辨率操作越界（含对 NULL 地址的操作）
	ErrIndexResolution = errors.New("index resolution error")
	// ErrIndexMath：地址运算失败（主分辨率不一致、溢出等）
	ErrIndexMath = errors.New("index math error")
)
