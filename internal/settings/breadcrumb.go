package settings

import (
	"net/url"
	"strings"

	"github.com/Priya8975/alert-notifications/internal/domain"
	"github.com/Priya8975/alert-notifications/internal/i18n"
)

const (
	SettingsPath           = "/settings"
	CategoryNotifications  = "notifications"
	NotificationsListPath  = SettingsPath + "/" + CategoryNotifications
	AddNotificationPath    = NotificationsListPath + "/add-notification"
	EditNotificationPrefix = NotificationsListPath + "/edit-notification/"
	NotificationPathPrefix = NotificationsListPath + "/alert/"
)

// categoryLabels maps settings categories to their catalog keys. Categories
// without a key are shown title-cased.
var categoryLabels = map[string]string{
	CategoryNotifications: "label.notification-plural",
}

// GetSettingPageEntityBreadCrumb builds the trail for a settings page:
// Settings > <category> [> <entity>], with names resolved through tr.
func GetSettingPageEntityBreadCrumb(tr i18n.Translator, category, entityName string) []domain.Breadcrumb {
	crumbs := []domain.Breadcrumb{
		{Name: tr.T("label.setting-plural"), URL: SettingsPath},
	}
	if category == "" {
		return crumbs
	}

	categoryURL := SettingsPath + "/" + url.PathEscape(category)
	name := titleCase(category)
	if key, ok := categoryLabels[category]; ok {
		name = tr.T(key)
	}
	crumbs = append(crumbs, domain.Breadcrumb{Name: name, URL: categoryURL})

	if entityName != "" {
		crumbs = append(crumbs, domain.Breadcrumb{Name: entityName, URL: ""})
	}
	return crumbs
}

// NotificationURL is the detail page of an alert.
func NotificationURL(fqn string) string {
	return NotificationPathPrefix + url.PathEscape(fqn)
}

// EditNotificationURL is the edit page of an alert.
func EditNotificationURL(fqn string) string {
	return EditNotificationPrefix + url.PathEscape(fqn)
}

func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
