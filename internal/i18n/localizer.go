package i18n

import (
	"regexp"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Translator looks up a localized message. Placeholders {0}, {1}, ... are
// replaced by the corresponding params. Unknown keys translate to the key
// itself.
type Translator interface {
	T(key string, params ...any) string
}

var placeholder = regexp.MustCompile(`\{(\d+)\}`)

// Localizer is a Translator bound to one mutable locale. Locale changes are
// announced to subscribers.
type Localizer struct {
	bundle *Bundle
	logger *zap.Logger

	mu      sync.RWMutex
	locale  string
	printer *message.Printer
	subs    map[int]func(locale string)
	nextSub int
}

// NewLocalizer returns a Localizer for the closest loaded match to locale.
//
// Precondition: bundle must not be nil.
func NewLocalizer(bundle *Bundle, locale string, logger *zap.Logger) *Localizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Localizer{
		bundle: bundle,
		logger: logger,
		subs:   map[int]func(string){},
	}
	l.locale, l.printer = l.resolve(locale)
	return l
}

func (l *Localizer) resolve(requested string) (string, *message.Printer) {
	locale := l.bundle.Match(requested)
	return locale, message.NewPrinter(language.Make(locale), message.Catalog(l.bundle.catalog))
}

// Locale returns the active locale identifier.
func (l *Localizer) Locale() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.locale
}

// Bundle returns the catalogs this Localizer reads from.
func (l *Localizer) Bundle() *Bundle {
	return l.bundle
}

// SetLocale switches to the closest match for requested and notifies
// subscribers when the effective locale changed. It returns the effective
// locale.
func (l *Localizer) SetLocale(requested string) string {
	l.mu.Lock()
	locale, printer := l.resolve(requested)
	if locale == l.locale {
		l.mu.Unlock()
		return locale
	}
	l.locale = locale
	l.printer = printer
	subs := make([]func(string), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	l.logger.Debug("locale changed", zap.String("locale", locale))
	for _, fn := range subs {
		fn(locale)
	}
	return locale
}

// Toggle cycles to the next loaded locale.
func (l *Localizer) Toggle() string {
	locales := l.bundle.Locales()
	current := l.Locale()
	next := locales[0]
	for i, loc := range locales {
		if loc == current {
			next = locales[(i+1)%len(locales)]
			break
		}
	}
	return l.SetLocale(next)
}

// Subscribe registers fn to be called after every effective locale change.
// The returned function removes the subscription.
func (l *Localizer) Subscribe(fn func(locale string)) (cancel func()) {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// T implements Translator. Numeric params are formatted with the active
// locale's digit grouping.
func (l *Localizer) T(key string, params ...any) string {
	l.mu.RLock()
	locale, printer := l.locale, l.printer
	l.mu.RUnlock()

	if _, ok := l.bundle.Message(locale, key); !ok {
		if _, ok := l.bundle.Message(BaseLocale, key); !ok {
			l.logger.Warn("translation key not found", zap.String("key", key))
			return key
		}
	}
	tmpl := printer.Sprintf(key)
	if len(params) == 0 {
		return tmpl
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		idx, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || idx >= len(params) {
			return m
		}
		return printer.Sprint(params[idx])
	})
}

// Number formats n with the active locale's digit grouping.
func (l *Localizer) Number(n int) string {
	l.mu.RLock()
	printer := l.printer
	l.mu.RUnlock()
	return printer.Sprint(n)
}

// Variants returns key's template in every loaded locale.
func (l *Localizer) Variants(key string) []string {
	return l.bundle.Variants(key)
}
