package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/scottyhq/scotty/internal/mask"
)

// TTL is an app's maximum wall-clock lifetime while any service is running.
// Forever (the zero value) disables enforcement.
type TTL struct {
	Forever bool
	Seconds uint32
}

// Expired reports whether age exceeds the TTL. Forever, and the zero
// value, never expire.
func (t TTL) Expired(age time.Duration) bool {
	if t.Forever || t == (TTL{}) {
		return false
	}
	return age > time.Duration(t.Seconds)*time.Second
}

// MarshalYAML encodes TTL the way the spec's Rust enum would round-trip:
// "forever" or a bare integer of seconds.
func (t TTL) MarshalYAML() (interface{}, error) {
	if t.Forever {
		return "forever", nil
	}
	return t.Seconds, nil
}

// UnmarshalYAML accepts either the string "forever" or an integer number of
// seconds.
func (t *TTL) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		if strings.EqualFold(strings.TrimSpace(s), "forever") {
			*t = TTL{Forever: true}
			return nil
		}
		n, convErr := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
		if convErr != nil {
			return fmt.Errorf("ttl: invalid value %q", s)
		}
		*t = TTL{Seconds: uint32(n)}
		return nil
	}

	var n uint32
	if err := unmarshal(&n); err != nil {
		return fmt.Errorf("ttl: %w", err)
	}
	*t = TTL{Seconds: n}
	return nil
}

// PublicService exposes one service on the load balancer.
type PublicService struct {
	Service string `yaml:"service" json:"service"`
	Port    int    `yaml:"port" json:"port"`
}

// CustomDomainMapping overrides the computed host for one service.
type CustomDomainMapping struct {
	Domain  string `yaml:"domain" json:"domain"`
	Service string `yaml:"service" json:"service"`
}

// AppSettings is the declarative, per-app configuration persisted as
// .scotty.yml inside the app's root directory (spec §3, §6).
type AppSettings struct {
	Environment    map[string]string      `yaml:"environment,omitempty" json:"environment,omitempty"`
	PublicServices []PublicService        `yaml:"public_services,omitempty" json:"public_services,omitempty"`
	AppBlueprint   string                 `yaml:"app_blueprint,omitempty" json:"app_blueprint,omitempty"`
	TTL            TTL                    `yaml:"ttl" json:"ttl"`
	Registry       string                 `yaml:"registry,omitempty" json:"registry,omitempty"`
	Domain         string                 `yaml:"domain,omitempty" json:"domain,omitempty"`
	AllowRobots    bool                   `yaml:"allow_robots,omitempty" json:"allow_robots,omitempty"`
	BasicAuth      *BasicAuth             `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
	Middlewares    []string               `yaml:"middlewares,omitempty" json:"middlewares,omitempty"`
	CustomDomains  []CustomDomainMapping  `yaml:"custom_domains,omitempty" json:"custom_domains,omitempty"`

	// NotifyReceivers names the notify.Registry receivers SetFinished
	// enqueues completion notifications to. Supplements spec §4.4's
	// SetFinished("if notification is set, enqueue it to all receivers
	// declared in settings") with a concrete settings field.
	NotifyReceivers []string `yaml:"notify_receivers,omitempty" json:"notify_receivers,omitempty"`
}

// NotificationReceivers returns the receivers configured for this app,
// or an empty slice if none were declared.
func (s AppSettings) NotificationReceivers() []string {
	return s.NotifyReceivers
}

// BasicAuth is an optional htpasswd-style credential pair enforced by the
// load balancer in front of the app.
type BasicAuth struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// MaskedEnvironment returns the environment map with sensitive values
// replaced for API egress (spec §6). Callers writing to disk must read
// s.Environment directly, never this method.
func (s AppSettings) MaskedEnvironment() map[string]string {
	return mask.Environment(s.Environment)
}

// DefaultScopes is the default requested_scopes value for a new AppData.
var DefaultScopes = []string{"default"}
