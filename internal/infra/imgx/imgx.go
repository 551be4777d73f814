package imgx

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"  // atwiki 上较旧的头像常是 GIF
	_ "image/jpeg" // 注册 JPEG 解码器
	_ "image/png"  // 注册 PNG 解码器
)

// Info 是图片头部解码得到的格式与尺寸（不解码像素）。
type Info struct {
	Format string // "png" / "jpeg" / "gif"
	Width  int
	Height int
}

// Sniff 校验 b 确实是一张可识别的图片，并返回格式与尺寸。
//
// 下载到的内容偶尔是错误页 HTML 或空 body；保存前用它挡住这类“假图片”。
func Sniff(b []byte) (Info, error) {
	if len(b) == 0 {
		return Info{}, errors.New("图片内容为空")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return Info{}, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, errors.New("图片尺寸无效")
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// Ext 返回格式对应的文件扩展名（带点）；未知格式返回空串。
func (i Info) Ext() string {
	switch i.Format {
	case "png":
		return ".png"
	case "jpeg":
		return ".jpg"
	case "gif":
		return ".gif"
	default:
		return ""
	}
}
