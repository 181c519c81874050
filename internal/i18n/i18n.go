// Package i18n translates the few user-visible strings the protocol
// surfaces (placeholder identities, error messages shown in the editor).
package i18n

import (
	"fmt"

	"github.com/leonelquinteros/gotext"
)

// DefaultLocale is the fallback when a locale has no translation loaded.
const DefaultLocale = "en"

var translations = make(map[string]*gotext.Po)

// LoadLocale creates the translation object for a locale from the content
// of a .po file.
func LoadLocale(identifier string, rawPO []byte) {
	po := gotext.NewPo()
	po.Parse(rawPO)
	translations[identifier] = po
}

// Translator returns a translation function bound to the given locale.
func Translator(locale string) func(key string, vars ...interface{}) string {
	return func(key string, vars ...interface{}) string {
		return Translate(key, locale, vars...)
	}
}

// Translate translates key for the given locale, falling back to the
// default locale and then to the key itself.
func Translate(key, locale string, vars ...interface{}) string {
	if po, ok := translations[locale]; ok {
		if translated := po.Get(key, vars...); translated != "" && translated != key {
			return translated
		}
	}
	if po, ok := translations[DefaultLocale]; ok {
		if translated := po.Get(key, vars...); translated != "" && translated != key {
			return translated
		}
	}
	return fmt.Sprintf(key, vars...)
}
