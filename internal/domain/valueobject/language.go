package valueobject

import "strings"

// Language 支持的语言标签（二选一）
type Language string

const (
	LanguageFrench  Language = "fr"
	LanguageEnglish Language = "en"
)

// DefaultLanguage 平分或空输入时的默认语言
const DefaultLanguage = LanguageFrench

// SupportedLanguages 按声明顺序返回支持的语言
func SupportedLanguages() []Language {
	return []Language{LanguageFrench, LanguageEnglish}
}

// ParseLanguage 解析语言标签，未知值返回默认语言
func ParseLanguage(s string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LanguageEnglish:
		return LanguageEnglish
	case LanguageFrench:
		return LanguageFrench
	default:
		return DefaultLanguage
	}
}

// IsSupported 判断是否为支持的语言
func (l Language) IsSupported() bool {
	return l == LanguageFrench || l == LanguageEnglish
}

// String 实现 fmt.Stringer
func (l Language) String() string {
	return string(l)
}
