// Package i18n loads the embedded message catalogs and provides the
// per-session localization lookup used by the game engine and frontends.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale every other catalog falls back to.
const BaseLocale = "en"

//go:embed locales/*.yaml
var embeddedFS embed.FS

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Bundle holds every loaded locale catalog.
type Bundle struct {
	messages map[string]map[string]string
	tags     []language.Tag
	matcher  language.Matcher
	catalog  *catalog.Builder
}

// LoadEmbedded loads the catalogs compiled into the binary.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedFS)
}

// MustLoadEmbedded is LoadEmbedded for program start-up and tests.
// It panics if the embedded catalogs are invalid.
func MustLoadEmbedded() *Bundle {
	b, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	return b
}

// LoadFromFS loads locales/*.yaml from fsys.
//
// Precondition: fsys must contain a catalog for BaseLocale.
// Postcondition: Returns a Bundle whose catalogs all agree on their key set
// with the base locale, or a non-nil error.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{messages: map[string]map[string]string{}}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := b.add(p, file); err != nil {
			return nil, err
		}
	}

	base, ok := b.messages[BaseLocale]
	if !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	for locale, msgs := range b.messages {
		for key := range base {
			if _, ok := msgs[key]; !ok {
				return nil, fmt.Errorf("catalog %s: missing key %q", locale, key)
			}
		}
	}

	if err := b.build(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) add(p string, file catalogFile) error {
	fromPath := strings.TrimSuffix(path.Base(p), path.Ext(p))
	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return fmt.Errorf("catalog %s: locale is required", p)
	}
	if locale != fromPath {
		return fmt.Errorf("catalog %s: locale %q must match file name %q", p, locale, fromPath)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("catalog %s: messages map is required", p)
	}
	if _, exists := b.messages[locale]; exists {
		return fmt.Errorf("catalog %s: locale %q already defined", p, locale)
	}
	msgs := make(map[string]string, len(file.Messages))
	for k, v := range file.Messages {
		key := strings.TrimSpace(k)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		msgs[key] = v
	}
	b.messages[locale] = msgs
	return nil
}

// build registers every message with a private x/text catalog and prepares
// the locale matcher. The base locale is placed first so that it wins when
// nothing matches.
func (b *Bundle) build() error {
	b.catalog = catalog.NewBuilder(catalog.Fallback(language.Make(BaseLocale)))
	locales := b.Locales()
	b.tags = make([]language.Tag, 0, len(locales))
	for _, locale := range locales {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		b.tags = append(b.tags, tag)
		for key, msg := range b.messages[locale] {
			if err := b.catalog.SetString(tag, key, msg); err != nil {
				return fmt.Errorf("register %s/%s: %w", locale, key, err)
			}
		}
	}
	b.matcher = language.NewMatcher(b.tags)
	return nil
}

// Locales returns the available locale identifiers with the base locale first.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.messages))
	for locale := range b.messages {
		if locale != BaseLocale {
			out = append(out, locale)
		}
	}
	sort.Strings(out)
	return append([]string{BaseLocale}, out...)
}

// HasLocale reports whether locale is loaded exactly.
func (b *Bundle) HasLocale(locale string) bool {
	_, ok := b.messages[locale]
	return ok
}

// Match resolves a requested language (for example "fr-CA" or "en_US") to
// the closest loaded locale. Unparseable or unsupported requests resolve to
// the base locale.
func (b *Bundle) Match(requested string) string {
	requested = strings.ReplaceAll(strings.TrimSpace(requested), "_", "-")
	if requested == "" {
		return BaseLocale
	}
	tag, err := language.Parse(requested)
	if err != nil {
		return BaseLocale
	}
	_, idx, conf := b.matcher.Match(tag)
	if conf == language.No {
		return BaseLocale
	}
	base, _ := b.tags[idx].Base()
	return base.String()
}

// Message returns the raw template for key in locale.
func (b *Bundle) Message(locale, key string) (string, bool) {
	msgs, ok := b.messages[locale]
	if !ok {
		return "", false
	}
	msg, ok := msgs[key]
	return msg, ok
}

// Variants returns key's template in every loaded locale, base locale first.
func (b *Bundle) Variants(key string) []string {
	var out []string
	for _, locale := range b.Locales() {
		if msg, ok := b.messages[locale][key]; ok {
			out = append(out, msg)
		}
	}
	return out
}
