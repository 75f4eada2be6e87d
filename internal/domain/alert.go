package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
)

// SubscriptionType is the destination kind of an alert subscription.
type SubscriptionType string

const (
	SubscriptionTypeEmail        SubscriptionType = "Email"
	SubscriptionTypeSlack        SubscriptionType = "Slack"
	SubscriptionTypeMsTeams      SubscriptionType = "MsTeams"
	SubscriptionTypeGChat        SubscriptionType = "GChat"
	SubscriptionTypeWebhook      SubscriptionType = "Webhook"
	SubscriptionTypeActivityFeed SubscriptionType = "ActivityFeed"
)

// Valid reports whether t is a known subscription type.
func (t SubscriptionType) Valid() bool {
	switch t {
	case SubscriptionTypeEmail, SubscriptionTypeSlack, SubscriptionTypeMsTeams,
		SubscriptionTypeGChat, SubscriptionTypeWebhook, SubscriptionTypeActivityFeed:
		return true
	}
	return false
}

// IsHTTP reports whether destinations of this type are reached with an HTTP POST.
func (t SubscriptionType) IsHTTP() bool {
	switch t {
	case SubscriptionTypeSlack, SubscriptionTypeMsTeams, SubscriptionTypeGChat, SubscriptionTypeWebhook:
		return true
	}
	return false
}

// ProviderType tells whether a subscription was created by a user or provisioned by the system.
type ProviderType string

const (
	ProviderUser   ProviderType = "user"
	ProviderSystem ProviderType = "system"
)

// Effect of a filtering rule.
type Effect string

const (
	EffectInclude Effect = "include"
	EffectExclude Effect = "exclude"
)

var (
	ErrDuplicateName = errors.New("alert with the same name already exists")
	ErrAlertDisabled = errors.New("alert is disabled or deleted")
	ErrNoDestination = errors.New("alert has no destination")
)

type FilteringRule struct {
	Name      string `json:"name"`
	Effect    Effect `json:"effect"`
	Condition string `json:"condition"`
}

type FilteringRules struct {
	Resources []string        `json:"resources"`
	Rules     []FilteringRule `json:"rules"`
}

// SubscriptionConfig holds the destination settings. Email subscriptions use
// Receivers; HTTP based subscriptions use Endpoint and optionally SecretKey.
type SubscriptionConfig struct {
	Receivers []string `json:"receivers,omitempty"`
	Endpoint  string   `json:"endpoint,omitempty"`
	SecretKey string   `json:"secretKey,omitempty"`
}

type AlertSubscription struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	FullyQualifiedName string             `json:"fullyQualifiedName"`
	Description        string             `json:"description,omitempty"`
	Href               string             `json:"href"`
	Version            float64            `json:"version"`
	UpdatedAt          int64              `json:"updatedAt"`
	UpdatedBy          string             `json:"updatedBy"`
	FilteringRules     FilteringRules     `json:"filteringRules"`
	SubscriptionType   SubscriptionType   `json:"subscriptionType"`
	SubscriptionConfig SubscriptionConfig `json:"subscriptionConfig"`
	Enabled            bool               `json:"enabled"`
	BatchSize          int                `json:"batchSize"`
	Timeout            int                `json:"timeout"`
	ReadTimeout        int                `json:"readTimeout"`
	Deleted            bool               `json:"deleted"`
	Provider           ProviderType       `json:"provider"`
}

// DisplayName is the label shown for the alert in listings.
func (a AlertSubscription) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.FullyQualifiedName
}

// Destinations lists the delivery targets of the alert.
func (a AlertSubscription) Destinations() []string {
	if a.SubscriptionType == SubscriptionTypeEmail {
		return a.SubscriptionConfig.Receivers
	}
	if a.SubscriptionConfig.Endpoint != "" {
		return []string{a.SubscriptionConfig.Endpoint}
	}
	return nil
}

// Default delivery settings applied when a create request leaves them unset.
const (
	DefaultBatchSize   = 10
	DefaultTimeout     = 10
	DefaultReadTimeout = 12
	InitialVersion     = 0.1
	VersionStep        = 0.1
)

type CreateAlertRequest struct {
	Name               string             `json:"name"`
	Description        string             `json:"description,omitempty"`
	FilteringRules     FilteringRules     `json:"filteringRules"`
	SubscriptionType   SubscriptionType   `json:"subscriptionType"`
	SubscriptionConfig SubscriptionConfig `json:"subscriptionConfig"`
	Enabled            *bool              `json:"enabled,omitempty"`
	BatchSize          int                `json:"batchSize,omitempty"`
	Timeout            int                `json:"timeout,omitempty"`
	ReadTimeout        int                `json:"readTimeout,omitempty"`
	Provider           ProviderType       `json:"provider,omitempty"`
}

// Validate checks the request and fills in defaults.
func (r *CreateAlertRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(r.Name, "/\"") {
		return fmt.Errorf("name must not contain '/' or '\"'")
	}
	if !r.SubscriptionType.Valid() {
		return fmt.Errorf("unknown subscriptionType %q", r.SubscriptionType)
	}
	if err := r.SubscriptionConfig.validate(r.SubscriptionType); err != nil {
		return err
	}
	if err := r.FilteringRules.validate(); err != nil {
		return err
	}
	if len(r.FilteringRules.Resources) == 0 {
		r.FilteringRules.Resources = []string{"all"}
	}
	if r.Provider == "" {
		r.Provider = ProviderUser
	}
	if r.Provider != ProviderUser && r.Provider != ProviderSystem {
		return fmt.Errorf("unknown provider %q", r.Provider)
	}
	if r.BatchSize <= 0 {
		r.BatchSize = DefaultBatchSize
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	if r.ReadTimeout <= 0 {
		r.ReadTimeout = DefaultReadTimeout
	}
	if r.Enabled == nil {
		enabled := true
		r.Enabled = &enabled
	}
	return nil
}

func (c SubscriptionConfig) validate(t SubscriptionType) error {
	switch {
	case t == SubscriptionTypeEmail:
		if len(c.Receivers) == 0 {
			return fmt.Errorf("subscriptionConfig.receivers is required for Email")
		}
		for _, r := range c.Receivers {
			if _, err := mail.ParseAddress(r); err != nil {
				return fmt.Errorf("invalid receiver %q", r)
			}
		}
	case t.IsHTTP():
		u, err := url.Parse(c.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("subscriptionConfig.endpoint must be an http(s) URL")
		}
	}
	return nil
}

type UpdateAlertRequest struct {
	Description        *string             `json:"description,omitempty"`
	FilteringRules     *FilteringRules     `json:"filteringRules,omitempty"`
	SubscriptionConfig *SubscriptionConfig `json:"subscriptionConfig,omitempty"`
	Enabled            *bool               `json:"enabled,omitempty"`
	BatchSize          *int                `json:"batchSize,omitempty"`
	Timeout            *int                `json:"timeout,omitempty"`
	ReadTimeout        *int                `json:"readTimeout,omitempty"`
}

// Empty reports whether the request changes nothing.
func (r UpdateAlertRequest) Empty() bool {
	return r.Description == nil && r.FilteringRules == nil && r.SubscriptionConfig == nil &&
		r.Enabled == nil && r.BatchSize == nil && r.Timeout == nil && r.ReadTimeout == nil
}

// Validate checks the fields present in the request against an alert of
// type t.
func (r UpdateAlertRequest) Validate(t SubscriptionType) error {
	if r.SubscriptionConfig != nil {
		if err := r.SubscriptionConfig.validate(t); err != nil {
			return err
		}
	}
	if r.FilteringRules != nil {
		if err := r.FilteringRules.validate(); err != nil {
			return err
		}
	}
	positive := []struct {
		name  string
		value *int
	}{
		{"batchSize", r.BatchSize},
		{"timeout", r.Timeout},
		{"readTimeout", r.ReadTimeout},
	}
	for _, f := range positive {
		if f.value != nil && *f.value <= 0 {
			return fmt.Errorf("%s must be positive", f.name)
		}
	}
	return nil
}

func (f FilteringRules) validate() error {
	for i, rule := range f.Rules {
		if rule.Effect != EffectInclude && rule.Effect != EffectExclude {
			return fmt.Errorf("filteringRules.rules[%d]: effect must be include or exclude", i)
		}
		if strings.TrimSpace(rule.Condition) == "" {
			return fmt.Errorf("filteringRules.rules[%d]: condition is required", i)
		}
	}
	return nil
}
