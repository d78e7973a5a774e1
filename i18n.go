package reactiveschema

import (
	"embed"

	"github.com/kaptinlin/go-i18n"
)

//go:embed locales/*.json
var localesFS embed.FS

// GetI18n returns an initialized internationalization bundle holding the
// localized messages for the six validator rule types (spec.md §4.H).
func GetI18n() (*i18n.I18n, error) {
	bundle := i18n.NewBundle(
		i18n.WithDefaultLocale("en"),
		i18n.WithLocales("en", "zh-Hans"),
	)

	err := bundle.LoadFS(localesFS, "locales/*.json")

	return bundle, err
}
