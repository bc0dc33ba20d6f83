package translate

import (
	"errors"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// DefaultSourceLang is used when a detected language is not supported.
const DefaultSourceLang = "EN"

// EnglishTarget is the target used when translating responses back to English.
const EnglishTarget = "EN-US"

// DefaultTargetLangs are requested when the caller does not name any target.
var DefaultTargetLangs = []string{"EN-US", "AR", "ZH", "ES"}

// sourceSynonyms canonicalizes detection results.
// Norwegian Bokmål is folded into English; simplified Chinese into ZH.
var sourceSynonyms = map[string]string{
	"NB":      "EN",
	"ZH-HANS": "ZH",
}

var supportedSourceLangs = map[string]bool{
	"AR": true, "BG": true, "CS": true, "DA": true, "DE": true, "EL": true,
	"EN": true, "ES": true, "ET": true, "FI": true, "FR": true, "HU": true,
	"ID": true, "IT": true, "JA": true, "KO": true, "LT": true, "LV": true,
	"NB": true, "NL": true, "PL": true, "PT": true, "RO": true, "RU": true,
	"SK": true, "SL": true, "SV": true, "TR": true, "UK": true, "ZH": true,
}

// Normalize returns the canonical form of a detected language code.
// Unknown codes fall back to DefaultSourceLang.
func Normalize(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if mapped, ok := sourceSynonyms[c]; ok {
		c = mapped
	}
	if !supportedSourceLangs[c] {
		return DefaultSourceLang
	}
	return c
}

// Base strips a region qualifier: "en-us" -> "EN", "PT_BR" -> "PT".
// Only for equality checks; API parameters keep the full code.
func Base(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if idx := strings.IndexAny(c, "-_"); idx >= 0 {
		c = c[:idx]
	}
	return c
}

// SameLanguage compares two codes by base language.
func SameLanguage(a, b string) bool {
	return Base(a) == Base(b)
}

// IsEnglish reports whether code is any English variant.
func IsEnglish(code string) bool {
	return Base(code) == "EN"
}

// MetricLabel maps code to its supported base code, or "other", so that
// user-chosen targets cannot grow metric label sets without bound.
func MetricLabel(code string) string {
	if b := Base(code); supportedSourceLangs[b] {
		return b
	}
	return "other"
}

// TargetParam formats a target code for the DeepL target_lang field.
func TargetParam(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsSupportedSource reports whether code is in the supported source set
// after synonym mapping.
func IsSupportedSource(code string) bool {
	c := strings.ToUpper(strings.TrimSpace(code))
	if mapped, ok := sourceSynonyms[c]; ok {
		c = mapped
	}
	return supportedSourceLangs[c]
}

// IsWellFormedTarget reports whether code is a syntactically valid language
// tag such as "DE", "EN-US" or "ZH-HANS". Well-formed tags with unknown
// subtags are accepted; the remote service decides whether it supports them.
func IsWellFormedTarget(code string) bool {
	_, err := language.Parse(strings.TrimSpace(code))
	if err == nil {
		return true
	}
	var unknown language.ValueError
	return errors.As(err, &unknown)
}

// SupportedSourceLangs returns the supported source codes in sorted order.
func SupportedSourceLangs() []string {
	langs := make([]string, 0, len(supportedSourceLangs))
	for lang := range supportedSourceLangs {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// LanguageMapper converts codes for backends that use lower-case ISO 639-1
// codes, such as LibreTranslate.
type LanguageMapper struct{}

// NewLanguageMapper creates a new language mapper instance.
func NewLanguageMapper() *LanguageMapper {
	return &LanguageMapper{}
}

// ToBackendCode converts a code to backend format.
// Examples:
//   - "EN" -> "en"
//   - "fr-CA" -> "fr"
//   - "EN-US" -> "en"
func (lm *LanguageMapper) ToBackendCode(code string) string {
	return strings.ToLower(Base(code))
}
