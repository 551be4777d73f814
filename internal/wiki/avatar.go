package wiki

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultImageBaseURL 是 atwiki 图片服务器上本 wiki 的根路径，相对 src 以它为基准解析。
const DefaultImageBaseURL = "https://img.atwiki.jp/moshimorpg/"

// 头像缩略图在该 wiki 中固定声明为 48x48；立绘、行走图尺寸都不同。
const avatarSize = "48"

// LocateAvatar 按文档顺序找到第一张声明 width="48" height="48" 的图片，返回解析后的绝对 URL。
// 比较的是属性的字面值，不读取图片本身。
func LocateAvatar(root *goquery.Selection, base *url.URL) (string, bool) {
	var out string
	root.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		w, _ := s.Attr("width")
		h, _ := s.Attr("height")
		if w != avatarSize || h != avatarSize {
			return true
		}
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			return true
		}
		ref, err := url.Parse(src)
		if err != nil {
			return true
		}
		if base == nil {
			out = ref.String()
		} else {
			out = base.ResolveReference(ref).String()
		}
		return false
	})
	return out, out != ""
}
