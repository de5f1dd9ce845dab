package i18n

import "testing"

func TestMatchesChineseVariants(t *testing.T) {
	for _, locale := range []string{"zh", "zh-CN", "zh-Hans-CN"} {
		c := New(locale)
		if got := c.Text(KeyTimeout); got != "请求超时，请稍后重试" {
			t.Fatalf("locale %q: got %q", locale, got)
		}
	}
}

func TestFallsBackToEnglish(t *testing.T) {
	for _, locale := range []string{"", "en", "de", "fr-FR", "garbage"} {
		c := New(locale)
		if got := c.Text(KeyGenerationFailed); got != "generation failed" {
			t.Fatalf("locale %q: got %q", locale, got)
		}
	}
}
