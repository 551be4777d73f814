package domain

import (
	"strconv"
	"strings"
)

// PageID 是 wiki 页面编号（正整数），也是记录库的主键来源。
type PageID int

// Key 返回记录库中使用的十进制字符串主键。
func (id PageID) Key() string { return strconv.Itoa(int(id)) }

// ParsePageID 解析十进制页面编号；非正整数一律视为无效。
func ParsePageID(s string) (PageID, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	// 拒绝 "007" 这类前导零：主键必须与 Key() 一一对应。
	if strconv.Itoa(n) != s {
		return 0, false
	}
	return PageID(n), true
}
