package mdx

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// FirstImageSrc 从 MDX 正文中找出第一张图片的 src。
//
// 优先级（固定）：
// 1) 结构化标记：第一个带 src 的 <Image .../>（不区分大小写；普通 <img> 不计入）
// 2) Markdown 图片语法：第一个 ![alt](src)
//
// 纯函数：无隐藏状态，不访问文件系统。找不到时返回 ("", false)。
func FirstImageSrc(content string) (string, bool) {
	if src, ok := firstMarkupImage(content); ok {
		return src, true
	}
	return firstMarkdownImage(content)
}

// imageTag 匹配 <Image 开始标签。HTML 解析器会把 image 归一为 img，
// 所以先改名为自定义元素，解析后就能与普通 <img> 区分。
var imageTag = regexp.MustCompile(`(?i)<image([\s/>])`)

const imageElem = "mdx-image"

func firstMarkupImage(content string) (string, bool) {
	if !imageTag.MatchString(content) {
		return "", false
	}
	marked := imageTag.ReplaceAllString(content, "<"+imageElem+"$1")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(marked))
	if err != nil {
		return "", false
	}

	var src string
	doc.Find(imageElem + "[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("src")
		v = strings.TrimSpace(v)
		if v == "" {
			return true
		}
		src = v
		return false
	})
	return src, src != ""
}

func firstMarkdownImage(content string) (string, bool) {
	source := []byte(content)
	root := goldmark.New().Parser().Parse(text.NewReader(source))

	var src string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}
		if d := strings.TrimSpace(string(img.Destination)); d != "" {
			src = d
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return src, src != ""
}
