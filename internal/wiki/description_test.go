package wiki

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func describe(t *testing.T, body string) (Description, bool) {
	t.Helper()
	doc := mustDoc(t, `<html><body><div id="wikibody">`+body+`</div></body></html>`)
	return ExtractDescription(doc.Find("#wikibody"))
}

func TestExtractDescription_NicknameLineAndMarker(t *testing.T) {
	d, ok := describe(t, `<h2>葵</h2>`+
		`<div>（アオ、葵ちゃん、他多数）<img src="aoi_f.png">明るい性格。<br>剣が得意。</div>`)

	require.True(t, ok)
	require.Equal(t, []string{"アオ", "葵ちゃん"}, d.NickNames)
	require.Equal(t, "<div>明るい性格。<br/>剣が得意。</div>", d.HTML)
}

func TestExtractDescription_PictureMarker(t *testing.T) {
	d, ok := describe(t, `<h2>葵</h2>`+
		`<div>（アオ）<picture><img src="walk.png"></picture> 本文 <picture><img src="x.png"></picture></div>`)

	require.True(t, ok)
	require.Equal(t, []string{"アオ"}, d.NickNames)
	require.Equal(t, "<div> 本文 </div>", d.HTML)
}

func TestExtractDescription_MarkerNeedsLetterF(t *testing.T) {
	// 第一张 img 的 src 不含 "f"，不是行走图；第二张才是。
	d, ok := describe(t, `<h2>葵</h2>`+
		`<div>（アオ）<img src="icon.png">前置き<img src="walk_f.png">本文</div>`)

	require.True(t, ok)
	require.Equal(t, "<div>本文</div>", d.HTML)
}

func TestExtractDescription_NicknameWithoutMarker(t *testing.T) {
	// 昵称块里没有行走图：昵称照常提取，但该块不产出片段；后续正文块补上简介。
	d, ok := describe(t, `<h2>葵</h2><div>（アオ、他多数）</div><div>本文</div>`)

	require.True(t, ok)
	require.Equal(t, []string{"アオ"}, d.NickNames)
	require.Equal(t, "<div>本文</div>", d.HTML)
}

func TestExtractDescription_OnlyPlaceholderNickname(t *testing.T) {
	d, ok := describe(t, `<h2>葵</h2><div>（他多数）<img src="f.png">本文</div>`)

	require.True(t, ok)
	require.Empty(t, d.NickNames)
	require.Equal(t, "<div>本文</div>", d.HTML)
}

func TestExtractDescription_NicknameOnlyFirstBlock(t *testing.T) {
	d, ok := describe(t, `<h2>葵</h2><div>本文</div><div>（アオ）<img src="f.png">続き</div>`)

	require.True(t, ok)
	require.Nil(t, d.NickNames)
	require.Equal(t, "<div>本文</div>\n<div>（アオ）<img src=\"f.png\"/>続き</div>", d.HTML)
}

func TestExtractDescription_SecondNicknameLineKeptVerbatim(t *testing.T) {
	// 第一个昵称块没有行走图、不产出片段；第二个形似昵称行的块不会覆盖昵称，整块保留。
	d, ok := describe(t, `<h2>葵</h2><div>（アオ）</div><div>（ミナ）<img src="f.png">本文</div>`)

	require.True(t, ok)
	require.Equal(t, []string{"アオ"}, d.NickNames)
	require.Equal(t, "<div>（ミナ）<img src=\"f.png\"/>本文</div>", d.HTML)
}

func TestExtractDescription_ChromeFiltered(t *testing.T) {
	d, ok := describe(t, `<h2>葵</h2>`+
		`<div class="atwiki-page-tags">（タグ）<img src="f.png">タグ本文</div>`+
		`<div class="atwiki-page-keyword">キーワード</div>`+
		`<div class="atwiki-lastmodify">最終更新</div>`+
		`<div>本文</div>`)

	require.True(t, ok)
	require.Equal(t, "<div>本文</div>", d.HTML)
	require.Nil(t, d.NickNames)
}

func TestExtractDescription_SkipsClassedAndNonDivBlocks(t *testing.T) {
	d, ok := describe(t, `<h2>葵</h2>`+
		`<p>段落</p><div class="plugin_contents">目次</div><ul><li>項目</li></ul><div>本文</div>`)

	require.True(t, ok)
	require.Equal(t, "<div>本文</div>", d.HTML)
}

func TestExtractDescription_RemovesNestedPictures(t *testing.T) {
	d, ok := describe(t, `<h2>葵</h2>`+
		`<div>前<span><picture><source srcset="a.webp"><img src="a.png"></picture></span>後</div>`)

	require.True(t, ok)
	require.Equal(t, "<div>前<span></span>後</div>", d.HTML)
}

func TestExtractDescription_Boundaries(t *testing.T) {
	d, ok := describe(t, `<div>見出し前</div><h2>葵</h2><div>A</div><div> </div><div>B</div><h2>登場作品</h2><div>C</div>`)

	require.True(t, ok)
	require.Equal(t, "<div>A</div>\n<div>B</div>", d.HTML)
}

func TestExtractDescription_Empty(t *testing.T) {
	cases := []string{
		``,
		`<div>見出しなし</div>`,
		`<h2>葵</h2><h2>登場作品</h2><div>C</div>`,
		`<h2>葵</h2><div><img src="a.png"></div>`,
		`<h2>葵</h2><div>（アオ）</div>`,
	}
	for _, body := range cases {
		_, ok := describe(t, body)
		require.False(t, ok, "body=%q", body)
	}
}

func TestExtractDescription_MissingContainer(t *testing.T) {
	doc := mustDoc(t, `<html><body><h2>葵</h2><div>本文</div></body></html>`)
	_, ok := ExtractDescription(doc.Find("#wikibody"))
	require.False(t, ok)
}

func TestParseNickNames(t *testing.T) {
	require.Equal(t, []string{"アオ", "葵ちゃん"}, parseNickNames("（アオ、葵ちゃん、他多数）"))
	require.Equal(t, []string{"A", "B"}, parseNickNames("（ A 、、B ）"))
	require.Empty(t, parseNickNames("（）"))
}
