// Package i18n holds the translated UI strings. Strings are addressed by
// dotted keys (label.*, message.*, server.*); a key with no translation
// renders as the key itself.
package i18n

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Translator resolves a key to a display string.
type Translator interface {
	T(key string, args ...any) string
}

var english = map[string]string{
	"label.notification-plural": "Notifications",
	"label.alert":               "Alert",
	"label.alert-plural":        "Alerts",
	"label.add-entity":          "Add %s",
	"label.no-entity":           "No %s",
	"label.name":                "Name",
	"label.trigger":             "Trigger",
	"label.description":         "Description",
	"label.action-plural":       "Actions",
	"label.edit":                "Edit",
	"label.delete":              "Delete",
	"label.previous":            "Previous",
	"label.next":                "Next",
	"label.setting-plural":      "Settings",
	"label.total-entity":        "Total %s: %d",
	"message.alerts-description": "Stay current with timely alerts using webhooks. " +
		"Send notifications to the destinations you choose when the events you care about happen.",
	"server.entity-fetch-error": "Error while fetching %s",
}

var french = map[string]string{
	"label.notification-plural": "Notifications",
	"label.alert":               "Alerte",
	"label.alert-plural":        "Alertes",
	"label.add-entity":          "Ajouter %s",
	"label.no-entity":           "Aucun(e) %s",
	"label.name":                "Nom",
	"label.trigger":             "Déclencheur",
	"label.description":         "Description",
	"label.action-plural":       "Actions",
	"label.edit":                "Modifier",
	"label.delete":              "Supprimer",
	"label.previous":            "Précédent",
	"label.next":                "Suivant",
	"label.setting-plural":      "Paramètres",
	"label.total-entity":        "Total %s : %d",
	"message.alerts-description": "Restez informé grâce aux alertes envoyées par webhooks " +
		"vers les destinations de votre choix.",
	"server.entity-fetch-error": "Erreur lors de la récupération de %s",
}

// Catalog is the set of supported languages and their strings.
type Catalog struct {
	builder   *catalog.Builder
	supported []language.Tag
	matcher   language.Matcher
	known     map[string]bool
}

// NewCatalog builds the catalog with every bundled language.
func NewCatalog() (*Catalog, error) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	bundles := []struct {
		tag     language.Tag
		strings map[string]string
	}{
		{language.English, english},
		{language.French, french},
	}

	c := &Catalog{builder: b, known: make(map[string]bool, len(english))}
	for _, bundle := range bundles {
		for key, msg := range bundle.strings {
			c.known[key] = true
			if err := b.SetString(bundle.tag, key, msg); err != nil {
				return nil, fmt.Errorf("registering %s for %s: %w", key, bundle.tag, err)
			}
		}
		c.supported = append(c.supported, bundle.tag)
	}
	c.matcher = language.NewMatcher(c.supported)
	return c, nil
}

// Printer returns a Translator for the best supported match of locale,
// which may be a single tag or an Accept-Language header value.
func (c *Catalog) Printer(locale string) Translator {
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		tags = []language.Tag{language.English}
	}
	tag, _, _ := c.matcher.Match(tags...)
	base, _ := tag.Base()
	return printer{
		p:     message.NewPrinter(language.Make(base.String()), message.Catalog(c.builder)),
		known: c.known,
	}
}

type printer struct {
	p     *message.Printer
	known map[string]bool
}

func (p printer) T(key string, args ...any) string {
	if !p.known[key] {
		return key
	}
	return p.p.Sprintf(key, args...)
}

// KeyTranslator echoes keys back. Useful when asserting which string a
// component asked for.
type KeyTranslator struct{}

func (KeyTranslator) T(key string, _ ...any) string { return key }
