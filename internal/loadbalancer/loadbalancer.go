// Package loadbalancer implements the Load-Balancer Adapter (C5): given an
// app's public services, it produces either a compose override carrying
// reverse-proxy labels or a standalone generated static config, so that
// public_services become reachable at
// https?://<service>--<app>.<domain_suffix>/. Grounded on the teacher's
// internal/compose override-generation shape (a yaml.v3 document written
// alongside the primary compose file) and the Traefik dynamic-config
// polling pattern seen in the pack's multi-domain-docker agent (label and
// generated-config variants of the same routing information).
package loadbalancer

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/scottyhq/scotty/internal/apperr"
	"github.com/scottyhq/scotty/internal/models"
	"github.com/scottyhq/scotty/internal/slug"
)

// Variant selects which load-balancer integration style to generate
// (spec §4.5).
type Variant string

const (
	VariantReverseProxyLabels  Variant = "ReverseProxyLabels"
	VariantGeneratedStaticConfig Variant = "GeneratedStaticConfig"
)

// GlobalSettings are the server-wide load-balancer options every app's
// config is generated against.
type GlobalSettings struct {
	Variant           Variant
	DomainSuffix      string
	CertResolver      string
	EnableTLS         bool
	MiddlewareAllowlist []string
}

func (g GlobalSettings) allows(middleware string) bool {
	for _, m := range g.MiddlewareAllowlist {
		if m == middleware {
			return true
		}
	}
	return false
}

// routedService is one public_service resolved to its final host and
// validated middleware chain, the common computation shared by both
// output variants.
type routedService struct {
	Service    string
	Port       int
	Host       string
	Middlewares []string
	BasicAuth  *models.BasicAuth
	AllowRobots bool
}

// Generate produces the override document for appName, appending output
// as either a compose-file override (ReverseProxyLabels) or a standalone
// static config document (GeneratedStaticConfig). Returns
// apperr.ErrDisallowedMiddleware if settings.Middlewares names anything
// outside global.MiddlewareAllowlist.
func Generate(global GlobalSettings, appName string, settings *models.AppSettings) ([]byte, error) {
	if settings == nil {
		return nil, nil
	}
	for _, m := range settings.Middlewares {
		if !global.allows(m) {
			return nil, fmt.Errorf("%w: %q", apperr.ErrDisallowedMiddleware, m)
		}
	}

	routed := routeServices(global, appName, settings)
	if len(routed) == 0 {
		return nil, nil
	}

	switch global.Variant {
	case VariantGeneratedStaticConfig:
		return generateStaticConfig(global, routed)
	default:
		return generateComposeOverride(global, routed)
	}
}

// routeServices computes the final host for each public_service,
// applying CustomDomainMapping overrides and the deterministic
// (app_slug, service) tie-break when multiple apps could claim the same
// domain (spec §4.5 — tie-break is evaluated by the caller across apps;
// here we just guarantee our own output is stable and sorted).
func routeServices(global GlobalSettings, appName string, settings *models.AppSettings) []routedService {
	appSlug := slug.Slugify(appName)
	customByService := make(map[string]string, len(settings.CustomDomains))
	for _, c := range settings.CustomDomains {
		customByService[c.Service] = c.Domain
	}

	out := make([]routedService, 0, len(settings.PublicServices))
	for _, ps := range settings.PublicServices {
		host := customByService[ps.Service]
		if host == "" {
			host = fmt.Sprintf("%s--%s.%s", slug.Slugify(ps.Service), appSlug, global.DomainSuffix)
		}
		out = append(out, routedService{
			Service:     ps.Service,
			Port:        ps.Port,
			Host:        host,
			Middlewares: append([]string(nil), settings.Middlewares...),
			BasicAuth:   settings.BasicAuth,
			AllowRobots: settings.AllowRobots,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

// composeOverride mirrors the subset of a docker-compose document this
// adapter needs to emit: labels attached to each routed service.
type composeOverride struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Labels map[string]string `yaml:"labels"`
}

func generateComposeOverride(global GlobalSettings, routed []routedService) ([]byte, error) {
	doc := composeOverride{Services: make(map[string]composeService, len(routed))}
	for _, r := range routed {
		labels := map[string]string{
			"traefik.enable": "true",
			fmt.Sprintf("traefik.http.routers.%s.rule", labelSafe(r.Service)): fmt.Sprintf("Host(`%s`)", r.Host),
			fmt.Sprintf("traefik.http.services.%s.loadbalancer.server.port", labelSafe(r.Service)): fmt.Sprintf("%d", r.Port),
		}

		entrypoint := "web"
		if global.EnableTLS {
			entrypoint = "websecure"
			labels[fmt.Sprintf("traefik.http.routers.%s.tls", labelSafe(r.Service))] = "true"
			if global.CertResolver != "" {
				labels[fmt.Sprintf("traefik.http.routers.%s.tls.certresolver", labelSafe(r.Service))] = global.CertResolver
			}
		}
		labels[fmt.Sprintf("traefik.http.routers.%s.entrypoints", labelSafe(r.Service))] = entrypoint

		var middlewareNames []string
		if r.BasicAuth != nil {
			mw := labelSafe(r.Service) + "-auth"
			labels[fmt.Sprintf("traefik.http.middlewares.%s.basicauth.users", mw)] = r.BasicAuth.Username + ":" + r.BasicAuth.Password
			middlewareNames = append(middlewareNames, mw)
		}
		middlewareNames = append(middlewareNames, r.Middlewares...)
		if len(middlewareNames) > 0 {
			labels[fmt.Sprintf("traefik.http.routers.%s.middlewares", labelSafe(r.Service))] = strings.Join(middlewareNames, ",")
		}
		if !r.AllowRobots {
			labels["robots.txt.disallow"] = "true"
		}

		doc.Services[r.Service] = composeService{Labels: labels}
	}

	return yaml.Marshal(doc)
}

// staticConfig and its nested types mirror Traefik's dynamic file
// provider document shape for the GeneratedStaticConfig variant.
type staticConfig struct {
	HTTP staticHTTP `yaml:"http"`
}

type staticHTTP struct {
	Routers  map[string]staticRouter  `yaml:"routers"`
	Services map[string]staticService `yaml:"services"`
}

type staticRouter struct {
	Rule        string   `yaml:"rule"`
	Service     string   `yaml:"service"`
	EntryPoints []string `yaml:"entryPoints"`
	Middlewares []string `yaml:"middlewares,omitempty"`
	TLS         *staticTLS `yaml:"tls,omitempty"`
}

type staticTLS struct {
	CertResolver string `yaml:"certResolver,omitempty"`
}

type staticService struct {
	LoadBalancer staticLoadBalancer `yaml:"loadBalancer"`
}

type staticLoadBalancer struct {
	Servers []staticServer `yaml:"servers"`
}

type staticServer struct {
	URL string `yaml:"url"`
}

func generateStaticConfig(global GlobalSettings, routed []routedService) ([]byte, error) {
	doc := staticConfig{HTTP: staticHTTP{
		Routers:  make(map[string]staticRouter, len(routed)),
		Services: make(map[string]staticService, len(routed)),
	}}

	for _, r := range routed {
		entrypoint := "web"
		var tls *staticTLS
		if global.EnableTLS {
			entrypoint = "websecure"
			tls = &staticTLS{CertResolver: global.CertResolver}
		}

		doc.HTTP.Routers[labelSafe(r.Service)] = staticRouter{
			Rule:        fmt.Sprintf("Host(`%s`)", r.Host),
			Service:     labelSafe(r.Service),
			EntryPoints: []string{entrypoint},
			Middlewares: r.Middlewares,
			TLS:         tls,
		}
		doc.HTTP.Services[labelSafe(r.Service)] = staticService{
			LoadBalancer: staticLoadBalancer{
				Servers: []staticServer{{URL: fmt.Sprintf("http://%s:%d", r.Service, r.Port)}},
			},
		}
	}

	return yaml.Marshal(doc)
}

// labelSafe makes a service name safe for use as a Traefik router/service
// identifier fragment (lowercase, hyphenated — reuses the slug rules).
func labelSafe(service string) string {
	return slug.Slugify(service)
}
