// Package qrcode 生成推广链接二维码
package qrcode

import (
	"encoding/base64"
	"errors"

	"github.com/skip2/go-qrcode"
)

// 尺寸范围（像素）
const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

const dataURLPrefix = "data:image/png;base64,"

// ErrEmptyContent 二维码内容为空
var ErrEmptyContent = errors.New("qrcode: empty content")

// Generator 固定尺寸与纠错级别的 PNG 二维码生成器
type Generator struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewGenerator size 超出范围时取边界值，非正数使用默认尺寸
func NewGenerator(size int) *Generator {
	switch {
	case size <= 0:
		size = DefaultSize
	case size < MinSize:
		size = MinSize
	case size > MaxSize:
		size = MaxSize
	}
	return &Generator{size: size, level: qrcode.Medium}
}

// PNG 编码为 PNG
func (g *Generator) PNG(content string) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	return qrcode.Encode(content, g.level, g.size)
}

// DataURL 可直接放入 <img src> 的 base64 PNG
func (g *Generator) DataURL(content string) (string, error) {
	data, err := g.PNG(content)
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(data), nil
}
