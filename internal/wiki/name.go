package wiki

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// 角色名后面可能跟着【】包起来的假名注音，例如 "葵【あおい】"。
var nameRE = regexp.MustCompile(`^([^【]+)(?:【[^】]+】)?`)

// ExtractName 取文档中第一个 <h2> 作为标题，去掉注音后返回规范化的角色名。
// 没有 <h2>、或去掉注音后为空，都说明这不是角色页。
func ExtractName(root *goquery.Selection) (string, bool) {
	h := root.Find("h2").First()
	if h.Length() == 0 {
		return "", false
	}
	m := nameRE.FindStringSubmatch(h.Text())
	if m == nil {
		return "", false
	}
	name := Normalize(m[1])
	return name, name != ""
}
