package wiki

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/settei/internal/domain"
)

// AvatarSaver 负责下载并保存头像图片，返回保存后的文件名。
// 文件名以角色名为基础，具体扩展名与目录由实现决定。
type AvatarSaver interface {
	SaveAvatar(ctx context.Context, imageURL, name string) (string, error)
}

// Mismatch 说明页面为什么不是一个合格的角色页。零值表示页面合格。
type Mismatch string

const (
	MismatchNone          Mismatch = ""
	MismatchUnparseable   Mismatch = "unparseable"
	MismatchNoTitle       Mismatch = "no_title"
	MismatchNoAvatar      Mismatch = "no_avatar"
	MismatchNoDescription Mismatch = "no_description"
)

func (m Mismatch) String() string {
	switch m {
	case MismatchNone:
		return "ok"
	case MismatchUnparseable:
		return "HTML 无法解析"
	case MismatchNoTitle:
		return "缺少 <h2> 标题"
	case MismatchNoAvatar:
		return "缺少 48x48 头像图片"
	case MismatchNoDescription:
		return "简介区段没有内容"
	default:
		return string(m)
	}
}

// Options 是提取器的全部外部输入；由调用方持有，提取器本身不保存跨页面状态。
type Options struct {
	// ImageBaseURL 为空时使用 DefaultImageBaseURL。
	ImageBaseURL string
	// ContentID 为空时使用 DefaultContentID。
	ContentID string
	// Saver 为 nil 时只定位头像，不下载。
	Saver AvatarSaver
}

// Result 是单个页面的提取结果。Mismatch 非零时 Character 不可用（Name 可能已填，仅供日志）。
type Result struct {
	Character domain.Character
	Mismatch  Mismatch

	// AvatarURL 是定位到的头像地址；AvatarErr 是下载/保存失败的原因（不影响页面是否合格）。
	AvatarURL string
	AvatarErr error
}

func (r Result) OK() bool { return r.Mismatch == MismatchNone }

// Extractor 把原始页面 HTML 变为角色记录。
type Extractor struct {
	base      *url.URL
	contentID string
	saver     AvatarSaver
}

func New(opts Options) (*Extractor, error) {
	raw := strings.TrimSpace(opts.ImageBaseURL)
	if raw == "" {
		raw = DefaultImageBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("image base url 无效：%w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("image base url 必须是绝对地址：%q", raw)
	}
	contentID := strings.TrimSpace(opts.ContentID)
	if contentID == "" {
		contentID = DefaultContentID
	}
	return &Extractor{base: base, contentID: contentID, saver: opts.Saver}, nil
}

// Extract 依次提取名称、头像、简介。
//
// 头像一旦定位到就会尝试保存（即使随后因为简介为空而判定为不合格）；
// 保存失败只记录在 Result.AvatarErr，记录照常产出，Avatar 为空。
func (e *Extractor) Extract(ctx context.Context, page []byte) Result {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return Result{Mismatch: MismatchUnparseable}
	}

	name, ok := ExtractName(doc.Selection)
	if !ok {
		return Result{Mismatch: MismatchNoTitle}
	}
	res := Result{Character: domain.Character{Name: name}}

	avatarURL, ok := LocateAvatar(doc.Selection, e.base)
	if !ok {
		res.Mismatch = MismatchNoAvatar
		return res
	}
	res.AvatarURL = avatarURL
	if e.saver != nil {
		file, err := e.saver.SaveAvatar(ctx, avatarURL, name)
		if err != nil {
			res.AvatarErr = err
		} else {
			res.Character.Avatar = file
		}
	}

	desc, ok := ExtractDescription(e.contentRoot(doc))
	if !ok {
		res.Mismatch = MismatchNoDescription
		return res
	}
	res.Character.Description = desc.HTML
	res.Character.NickNames = desc.NickNames
	return res
}

func (e *Extractor) contentRoot(doc *goquery.Document) *goquery.Selection {
	return doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		return id == e.contentID
	}).First()
}
