// Package store 负责角色记录库（characters.json）的读写。
//
// 文件格式是以页面编号（十进制字符串）为键的 JSON 对象，供下游脚本直接读取。
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/John-Robertt/settei/internal/domain"
	"github.com/John-Robertt/settei/internal/infra/fsx"
)

// DefaultFileName 是记录库的默认文件名（相对工作目录）。
const DefaultFileName = "characters.json"

// ErrExists 表示该页面已有记录；记录一旦写入就不再覆盖。
var ErrExists = errors.New("记录已存在")

// Records 是内存中的记录库。
type Records map[string]domain.Character

func (r Records) Has(id domain.PageID) bool {
	_, ok := r[id.Key()]
	return ok
}

// Put 插入一条新记录；已存在时返回 ErrExists，原记录保持不变。
func (r Records) Put(id domain.PageID, c domain.Character) error {
	k := id.Key()
	if _, ok := r[k]; ok {
		return fmt.Errorf("page=%s: %w", k, ErrExists)
	}
	r[k] = c
	return nil
}

// Keys 按页面编号升序返回所有键；无法解析为编号的键排在最后（按字典序）。
func (r Records) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aok := domain.ParsePageID(keys[i])
		b, bok := domain.ParsePageID(keys[j])
		switch {
		case aok && bok:
			return a < b
		case aok != bok:
			return aok
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

// Error 是记录库读写失败（对应 report 中的 io_failed）。
type Error struct {
	Op   string // "load" / "save"
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("记录库%s失败：%q：%v", opName(e.Op), e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opName(op string) string {
	switch op {
	case "load":
		return "读取"
	case "save":
		return "写入"
	default:
		return op
	}
}

// File 是基于单个 JSON 文件的记录库。
type File struct {
	Path string
}

// Load 读取记录库；文件不存在时先写入一个空对象 "{}" 再返回空库。
//
// 文件损坏不做“当作空库”的降级：那样会在下一次保存时覆盖掉已有记录。
func (f File) Load() (Records, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, &Error{Op: "load", Path: f.Path, Err: err}
		}
		if err := f.Save(Records{}); err != nil {
			return nil, err
		}
		return Records{}, nil
	}

	recs := Records{}
	if len(bytes.TrimSpace(b)) == 0 {
		return recs, nil
	}
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, &Error{Op: "load", Path: f.Path, Err: err}
	}
	if recs == nil {
		// 文件内容是 null。
		recs = Records{}
	}
	return recs, nil
}

// Save 以 2 空格缩进、不转义非 ASCII 与 HTML 字符的方式原子写入整个记录库。
func (f File) Save(recs Records) error {
	b, err := Encode(recs)
	if err != nil {
		return &Error{Op: "save", Path: f.Path, Err: err}
	}
	dir, name := filepath.Split(f.Path)
	if dir == "" {
		dir = "."
	}
	if err := fsx.WriteFileAtomic(dir, name, b); err != nil {
		return &Error{Op: "save", Path: f.Path, Err: err}
	}
	return nil
}

// Encode 返回记录库落盘时的字节（末尾带换行）。
func Encode(recs Records) ([]byte, error) {
	if recs == nil {
		recs = Records{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
