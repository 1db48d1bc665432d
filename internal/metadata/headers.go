package metadata

import "strings"

const (
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	mobileUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) " +
		"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

// headersFor selects request headers by simple substring match on the URL.
// Short-video hosts only serve useful markup to mobile agents; some content
// platforms require a same-site referrer.
func headersFor(rawURL string) map[string]string {
	h := map[string]string{
		"User-Agent":      desktopUA,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
	}

	switch {
	case strings.Contains(rawURL, "douyin.com"):
		h["User-Agent"] = mobileUA
	case strings.Contains(rawURL, "bilibili.com") || strings.Contains(rawURL, "b23.tv"):
		h["Referer"] = "https://www.bilibili.com"
	case strings.Contains(rawURL, "zhihu.com"):
		h["Referer"] = "https://www.zhihu.com"
	}
	return h
}
