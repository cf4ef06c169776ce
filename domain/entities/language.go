package entities

import "unicode"

// Language is the conversation language used to pick prompts and voices
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageArabic  Language = "ar"
)

// ParseLanguage normalizes a client supplied language. Anything other than
// Arabic falls back to English.
func ParseLanguage(s string) Language {
	if Language(s) == LanguageArabic {
		return LanguageArabic
	}
	return LanguageEnglish
}

// DetectLanguage reports Arabic when the text contains any Arabic script rune
func DetectLanguage(text string) Language {
	for _, r := range text {
		if unicode.Is(unicode.Arabic, r) {
			return LanguageArabic
		}
	}
	return LanguageEnglish
}

// LocaleCode returns the BCP-47 code speech providers expect
func (l Language) LocaleCode() string {
	if l == LanguageArabic {
		return "ar-SA"
	}
	return "en-US"
}
