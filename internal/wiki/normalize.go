package wiki

import "strings"

// Normalize 把任意长度的连续空白（含换行、制表符、全角空格）折叠为单个空格，并去掉首尾空白。
func Normalize(s string) string { return strings.Join(strings.Fields(s), " ") }
