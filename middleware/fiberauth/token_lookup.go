package fiberauth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// tokenSource is one entry of Config.TokenLookup
type tokenSource struct {
	kind string
	name string
}

// parseTokenLookup reads "kind:name" pairs separated by commas. Unknown
// kinds and malformed pairs are ignored.
func parseTokenLookup(lookup string) []tokenSource {
	var sources []tokenSource
	for _, part := range strings.Split(lookup, ",") {
		kind, name, ok := strings.Cut(part, ":")
		kind, name = strings.ToLower(strings.TrimSpace(kind)), strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		switch kind {
		case "header", "query", "cookie":
			sources = append(sources, tokenSource{kind: kind, name: name})
		}
	}
	return sources
}

// read returns the raw token of the source or an empty string
func (s tokenSource) read(c *fiber.Ctx, scheme string) string {
	switch s.kind {
	case "cookie":
		return strings.TrimSpace(c.Cookies(s.name))
	case "query":
		return strings.TrimSpace(c.Query(s.name))
	case "header":
		value := strings.TrimSpace(c.Get(s.name))
		prefix, token, ok := strings.Cut(value, " ")
		if !ok || !strings.EqualFold(prefix, scheme) {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return ""
}

// tokenFrom returns the first token found, ErrTokenMissingOrMalformed otherwise
func tokenFrom(c *fiber.Ctx, sources []tokenSource, scheme string) (string, error) {
	for _, source := range sources {
		if token := source.read(c, scheme); token != "" {
			return token, nil
		}
	}
	return "", ErrTokenMissingOrMalformed
}
