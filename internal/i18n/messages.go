// Package i18n holds the user-facing message catalog. Controllers surface
// failure reasons through it so the presentation layer never renders raw
// error strings.
package i18n

import "golang.org/x/text/language"

// Key identifies one user-facing message.
type Key string

const (
	KeyGenerationFailed   Key = "generation_failed"
	KeyTimeout            Key = "timeout_retry"
	KeyRegenerationFailed Key = "regeneration_failed"
	KeyVideoFailed        Key = "video_failed"
	KeyExportFailed       Key = "export_failed"
	KeyExportDone         Key = "export_done"
)

var supported = []language.Tag{
	language.English, // default
	language.Chinese,
}

var matcher = language.NewMatcher(supported)

var catalogs = map[language.Tag]map[Key]string{
	language.English: {
		KeyGenerationFailed:   "generation failed",
		KeyTimeout:            "request timed out, please retry",
		KeyRegenerationFailed: "shot regeneration failed",
		KeyVideoFailed:        "video rendering failed",
		KeyExportFailed:       "export failed",
		KeyExportDone:         "saved to library",
	},
	language.Chinese: {
		KeyGenerationFailed:   "加载失败",
		KeyTimeout:            "请求超时，请稍后重试",
		KeyRegenerationFailed: "分镜重新生成失败",
		KeyVideoFailed:        "视频生成失败",
		KeyExportFailed:       "导出失败",
		KeyExportDone:         "已保存到资产库",
	},
}

// Catalog resolves message keys for one locale.
type Catalog struct {
	tag language.Tag
}

// New matches the requested locale ("en", "zh-CN", "zh-Hans", ...) against the
// supported set, falling back to English.
func New(locale string) *Catalog {
	tag, _ := language.MatchStrings(matcher, locale)
	base, _, _ := tag.Raw()
	for _, s := range supported {
		sb, _, _ := s.Raw()
		if sb == base {
			return &Catalog{tag: s}
		}
	}
	return &Catalog{tag: language.English}
}

// Text returns the message for key, falling back to the English catalog for
// keys a translation is missing.
func (c *Catalog) Text(key Key) string {
	if msgs, ok := catalogs[c.tag]; ok {
		if msg, ok := msgs[key]; ok {
			return msg
		}
	}
	return catalogs[language.English][key]
}
