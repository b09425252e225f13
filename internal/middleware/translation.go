package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type translationContextKey struct{}
type countryContextKey struct{}

var (
	TranslationKey = translationContextKey{}
	CountryKey     = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// countryTranslations maps ISO country codes to the Bible translation a
// reader in that country most likely expects.
var countryTranslations = map[string]string{
	"BR": "almeida",
	"PT": "almeida",
	"RO": "rccv",
	"MD": "rccv",
	"GB": "kjv",
}

var languageTranslations = map[string]string{
	"pt": "almeida",
	"ro": "rccv",
}

// Translation stores the preferred Bible translation on the request context.
// Explicit X-Translation wins, then Accept-Language, then GeoIP country.
func Translation(defaultTranslation string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			translation := detectTranslation(r, defaultTranslation, country)
			ctx := context.WithValue(r.Context(), TranslationKey, translation)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, strings.ToUpper(country))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectTranslation(r *http.Request, fallback string, country string) string {
	if v := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Translation"))); v != "" {
		return v
	}
	if lang := parseAcceptLanguage(r.Header.Get("Accept-Language")); lang != "" {
		if t, ok := languageTranslations[lang]; ok {
			return t
		}
	}
	if t, ok := countryTranslations[strings.ToUpper(country)]; ok {
		return t
	}
	if fallback != "" {
		return fallback
	}
	return "web"
}

func parseAcceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		locale := strings.ToLower(strings.TrimSpace(strings.Split(part, ";")[0]))
		if locale == "" {
			continue
		}
		if idx := strings.IndexAny(locale, "-_"); idx > 0 {
			locale = locale[:idx]
		}
		return locale
	}
	return ""
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func TranslationFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(TranslationKey).(string); ok {
		return v
	}
	return "web"
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort ISO country code for the given request.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	headerHints := []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}
	for _, key := range headerHints {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if region := localeRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

func localeRegion(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		token := strings.TrimSpace(strings.Split(part, ";")[0])
		if token == "" {
			continue
		}
		if idx := strings.IndexAny(token, "-_"); idx > 0 && idx < len(token)-1 {
			return strings.ToUpper(token[idx+1:])
		}
	}
	return ""
}
