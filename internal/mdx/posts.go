package mdx

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Post 是一篇博客文章（slug + front matter + 正文）。
type Post struct {
	Slug        string
	Title       string
	PublishedAt string
	Image       string // front matter 显式指定的封面
	Content     string // 去掉 front matter 后的正文
}

// Cover 是拼贴画中的一格。
type Cover struct {
	Slug  string
	Title string
	Src   string
}

// DefaultCoverLimit 是拼贴画默认展示的文章数。
const DefaultCoverLimit = 6

// ReadPosts 读取 dir（不递归）下所有以 suffix 结尾的文章；dir 不存在返回空列表。
func ReadPosts(fsys afero.Fs, dir, suffix string) ([]Post, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	posts := make([]Post, 0, len(entries))
	for _, e := range entries {
		if !e.Mode().IsRegular() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		b, err := afero.ReadFile(fsys, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		meta, body := ParseFrontMatter(string(b))
		posts = append(posts, Post{
			Slug:        strings.TrimSuffix(e.Name(), suffix),
			Title:       meta["title"],
			PublishedAt: meta["publishedAt"],
			Image:       meta["image"],
			Content:     body,
		})
	}
	return posts, nil
}

// ParseFrontMatter 解析开头 "---" 包围的 key: value 行（值两侧的引号会被去掉）。
// 没有 front matter 时返回空 map 与原文。
func ParseFrontMatter(content string) (map[string]string, string) {
	meta := map[string]string{}

	rest, ok := strings.CutPrefix(strings.TrimLeft(content, "\ufeff"), "---")
	if !ok {
		return meta, content
	}
	block, body, ok := strings.Cut(rest, "\n---")
	if !ok {
		return meta, content
	}

	sc := bufio.NewScanner(strings.NewReader(block))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		meta[key] = unquote(strings.TrimSpace(value))
	}

	// 去掉闭合 "---" 所在行的剩余部分。
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}
	return meta, body
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '\'' && v[len(v)-1] == '\'') || (v[0] == '"' && v[len(v)-1] == '"') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// Covers 选出拼贴画的封面：按 publishedAt 倒序，封面取 front matter image，否则取正文第一张图；
// 两者都没有的文章被丢弃。limit <= 0 时使用 DefaultCoverLimit。
func Covers(posts []Post, limit int) []Cover {
	if limit <= 0 {
		limit = DefaultCoverLimit
	}

	sorted := append([]Post(nil), posts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return publishedTime(sorted[i].PublishedAt).After(publishedTime(sorted[j].PublishedAt))
	})

	out := make([]Cover, 0, limit)
	for _, p := range sorted {
		src := strings.TrimSpace(p.Image)
		if src == "" {
			src, _ = FirstImageSrc(p.Content)
		}
		if src == "" {
			continue
		}
		out = append(out, Cover{Slug: p.Slug, Title: p.Title, Src: src})
		if len(out) >= limit {
			break
		}
	}
	return out
}

// publishedTime 解析 "2024-04-09" / RFC3339；无法解析的按零值处理（排在最后）。
func publishedTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
