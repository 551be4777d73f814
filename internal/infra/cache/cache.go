package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/settei/internal/domain"
	"github.com/John-Robertt/settei/internal/infra/fsx"
)

// Store 提供 <path>/cache/pages/ 下的原始页面 HTML 缓存。
//
// 缓存只用于“离线重跑提取规则”，不参与“是否已处理”的判断（那由记录库决定）。
type Store struct {
	Root string // <path>（工作目录）
}

func New(root string) Store {
	return Store{Root: filepath.Clean(strings.TrimSpace(root))}
}

func (s Store) dir() string { return filepath.Join(s.Root, "cache", "pages") }

// PagePath 返回页面 HTML 缓存的绝对路径。
func (s Store) PagePath(id domain.PageID) (string, error) {
	if id < 1 {
		return "", fmt.Errorf("非法页面编号：%d", id)
	}
	return filepath.Join(s.dir(), id.Key()+".html"), nil
}

// ReadPage 读取缓存；未命中返回 ok=false 且 err=nil。
func (s Store) ReadPage(id domain.PageID) ([]byte, bool, error) {
	path, err := s.PagePath(id)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s Store) WritePage(id domain.PageID, html []byte) error {
	if _, err := s.PagePath(id); err != nil {
		return err
	}
	return fsx.WriteFileAtomic(s.dir(), id.Key()+".html", html)
}
