package wiki

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultContentID 是 atwiki 页面正文容器的 id。
const DefaultContentID = "wikibody"

// nickPlaceholder 是昵称列表末尾常见的“等等”，不是真正的昵称。
const nickPlaceholder = "他多数"

// atwiki 自带的标签/关键字/最后更新时间等小部件，不属于角色内容。
var chromeClasses = []string{
	"atwiki-page-tags",
	"atwiki-page-keyword",
	"atwiki-lastmodify",
}

// Description 是正文容器中“简介”一节的提取结果。
type Description struct {
	// HTML 是各片段的原始标记（去掉 <picture>），以换行连接。
	HTML      string
	NickNames []string
}

// walkState 描述遍历正文直接子元素时所处的区段。
type walkState int

const (
	beforeFirstHeading walkState = iota
	collecting
	stopped
)

// markerPhase 描述昵称块内部的两段式扫描：先找行走图标记，再收集标记之后的内容。
type markerPhase int

const (
	seekingMarker markerPhase = iota
	afterMarker
)

// ExtractDescription 收集正文容器中第一个 <h2> 与第二个 <h2> 之间的简介内容。
//
// 注意：该函数会就地修改 body（移除 <picture>、移动昵称块中的节点），调用方不应再复用该文档。
func ExtractDescription(body *goquery.Selection) (Description, bool) {
	body = body.First()
	if body.Length() == 0 {
		return Description{}, false
	}

	var (
		state     = beforeFirstHeading
		fragments []string
		nicks     []string
		nickSeen  bool
	)

	body.Children().EachWithBreak(func(_ int, el *goquery.Selection) bool {
		tag := goquery.NodeName(el)
		if tag == "h2" {
			if state == beforeFirstHeading {
				state = collecting
				return true
			}
			state = stopped
			return false
		}
		if state != collecting {
			return true
		}

		if strings.TrimSpace(el.Text()) == "" || isChrome(el) {
			return true
		}
		if tag != "div" {
			return true
		}

		// 昵称行只在尚未收集到任何内容时检查（只看第一个有内容的块）。
		if len(fragments) == 0 && !nickSeen {
			if line, ok := nickLine(el.Get(0)); ok {
				nickSeen = true
				nicks = parseNickNames(line)
				if frag := splitAfterMarker(el.Get(0)); frag != "" {
					fragments = append(fragments, frag)
				}
				return true
			}
		}

		if strings.TrimSpace(el.AttrOr("class", "")) != "" {
			return true
		}
		el.Find("picture").Remove()
		h, err := goquery.OuterHtml(el)
		if err != nil || h == "" {
			return true
		}
		fragments = append(fragments, h)
		return true
	})

	if len(fragments) == 0 {
		return Description{}, false
	}
	return Description{
		HTML:      strings.Join(fragments, "\n"),
		NickNames: nicks,
	}, true
}

func isChrome(el *goquery.Selection) bool {
	for _, c := range chromeClasses {
		if el.HasClass(c) {
			return true
		}
	}
	return false
}

// nickLine 判断块的第一个子节点是否为形如 "（A、B）" 的文本。
func nickLine(block *html.Node) (string, bool) {
	first := block.FirstChild
	if first == nil || first.Type != html.TextNode {
		return "", false
	}
	line := strings.TrimSpace(first.Data)
	if !strings.HasPrefix(line, "（") || !strings.HasSuffix(line, "）") {
		return "", false
	}
	return line, true
}

func parseNickNames(line string) []string {
	inner := strings.Trim(line, "（）")
	var out []string
	for _, p := range strings.Split(inner, "、") {
		p = strings.TrimSpace(p)
		if p == "" || p == nickPlaceholder {
			continue
		}
		out = append(out, p)
	}
	return out
}

// splitAfterMarker 把昵称块中行走图标记之后的节点移入一个新的 <div>，返回其标记。
// 标记之后的 <picture> 与空白文本被丢弃；没有标记或标记后无内容时返回空串。
func splitAfterMarker(block *html.Node) string {
	phase := seekingMarker
	var kept []*html.Node
	for c := block.FirstChild; c != nil; c = c.NextSibling {
		switch phase {
		case seekingMarker:
			if isSpriteMarker(c) {
				phase = afterMarker
			}
		case afterMarker:
			if isBlankText(c) || isElement(c, "picture") {
				continue
			}
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return ""
	}

	div := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range kept {
		block.RemoveChild(n)
		div.AppendChild(n)
	}
	var b strings.Builder
	if err := html.Render(&b, div); err != nil {
		return ""
	}
	return b.String()
}

// isSpriteMarker 识别行走图：<picture>，或 src 中含 "f" 的 <img>。
func isSpriteMarker(n *html.Node) bool {
	if isElement(n, "picture") {
		return true
	}
	return isElement(n, "img") && strings.Contains(attr(n, "src"), "f")
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func isBlankText(n *html.Node) bool {
	return n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}
