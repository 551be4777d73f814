package avatar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/John-Robertt/settei/internal/infra/fsx"
	"github.com/John-Robertt/settei/internal/infra/httpx"
	"github.com/John-Robertt/settei/internal/infra/imgx"
)

// 头像通常只有几 KB；上限用于挡住误指向大文件的链接。
const maxImageBytes = 4 << 20

// Saver 下载头像并以“角色名 + 扩展名”保存到 Dir。
type Saver struct {
	Client *http.Client
	Dir    string
}

// SaveAvatar 下载 imageURL，校验确实是图片后原子写入 Dir，返回文件名。
func (s Saver) SaveAvatar(ctx context.Context, imageURL, name string) (string, error) {
	if s.Client == nil {
		return "", errors.New("image client 为空")
	}
	if strings.TrimSpace(s.Dir) == "" {
		return "", errors.New("头像目录为空")
	}
	base := FileBase(name)
	if base == "" {
		return "", fmt.Errorf("角色名无法用作文件名：%q", name)
	}

	b, err := download(ctx, s.Client, imageURL)
	if err != nil {
		return "", err
	}
	info, err := imgx.Sniff(b)
	if err != nil {
		return "", fmt.Errorf("下载内容不是图片：%w", err)
	}

	file := base + pickExt(imageURL, info)
	if err := fsx.WriteFileAtomic(s.Dir, file, b); err != nil {
		return "", err
	}
	return file, nil
}

func download(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return httpx.ReadLimited(resp.Body, maxImageBytes)
}

// pickExt 优先使用 URL 路径上的扩展名；没有时用嗅探到的格式，最后兜底 .png。
func pickExt(imageURL string, info imgx.Info) string {
	if u, err := url.Parse(imageURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); isImageExt(ext) {
			return ext
		}
	}
	if ext := info.Ext(); ext != "" {
		return ext
	}
	return ".png"
}

func isImageExt(ext string) bool {
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp":
		return true
	}
	return false
}

// FileBase 把角色名变成可用的文件名主体：路径分隔符与控制字符替换为 "_"。
func FileBase(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if strings.Trim(out, ".") == "" {
		return ""
	}
	return out
}
