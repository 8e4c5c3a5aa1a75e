package models

import "time"

// Status is the derived lifecycle status of an app (spec §3).
type Status string

const (
	StatusStopped     Status = "Stopped"
	StatusRunning     Status = "Running"
	StatusStarting    Status = "Starting"
	StatusCreating    Status = "Creating"
	StatusDestroying  Status = "Destroying"
	StatusUnsupported Status = "Unsupported"
)

// AppData is the canonical record of one application (spec §3).
type AppData struct {
	Name              string           `json:"name"`
	RootDirectory     string           `json:"root_directory"`
	DockerComposePath string           `json:"docker_compose_path"`
	Services          []ContainerState `json:"services"`
	Settings          *AppSettings     `json:"settings,omitempty"`
	Status            Status           `json:"status"`
	RunningSince      *time.Time       `json:"running_since,omitempty"`
	RequestedScopes   []string         `json:"requested_scopes"`

	// ComposeProject is the compose project name containers are labeled
	// with on disk (docker compose infers it from the compose file's
	// directory name). Discovery records it explicitly so every caller
	// that lists containers for this app — discovery itself and the
	// orchestration handlers — queries the same project, even when Name
	// (a slug) differs from the raw directory name. Empty means "use
	// Name", true for apps Scotty itself created (spec §4.4, §4.7).
	ComposeProject string `json:"compose_project,omitempty"`
}

// ProjectName returns the compose project name to query the container
// runtime with: ComposeProject if discovery recorded one, otherwise Name
// (the directory basename and the slug coincide for apps Scotty creates).
func (a *AppData) ProjectName() string {
	if a.ComposeProject != "" {
		return a.ComposeProject
	}
	return a.Name
}

// IsLegacy reports whether the app has no persisted settings file, meaning
// it was adopted/discovered rather than created through Scotty with a
// .scotty.yml (spec §3 Unsupported status, §4.4 Destroy refusal).
func (a *AppData) IsLegacy() bool {
	return a.Settings == nil
}

// DeriveStatus computes Status from the current Services slice, honoring
// the invariant in spec §8 property 3: Running iff every service is
// Running, Stopped iff no service is running, Starting otherwise.
// holdStatus, when non-empty, is used while an orchestration holds the app
// (Creating/Destroying) instead of the container-derived status.
func (a *AppData) DeriveStatus(holdStatus Status) {
	if holdStatus != "" {
		a.Status = holdStatus
		return
	}
	if a.IsLegacy() {
		a.Status = StatusUnsupported
		return
	}

	if len(a.Services) == 0 {
		a.Status = StatusStopped
		return
	}

	running := 0
	for _, svc := range a.Services {
		if svc.Status == ContainerRunning {
			running++
		}
	}

	switch {
	case running == 0:
		a.Status = StatusStopped
	case running == len(a.Services):
		a.Status = StatusRunning
	default:
		a.Status = StatusStarting
	}

	a.RunningSince = earliestStart(a.Services)
}

// earliestStart returns the earliest StartedAt among running services, or
// nil if none are running.
func earliestStart(services []ContainerState) *time.Time {
	var earliest *time.Time
	for _, svc := range services {
		if svc.Status != ContainerRunning || svc.StartedAt == nil {
			continue
		}
		if earliest == nil || svc.StartedAt.Before(*earliest) {
			earliest = svc.StartedAt
		}
	}
	return earliest
}

// MaxServiceAge returns the longest continuous running duration among this
// app's services, measured from now. Used by the TTL loop (spec §4.7).
// Returns 0 if no service is running.
func (a *AppData) MaxServiceAge(now time.Time) time.Duration {
	var maxAge time.Duration
	for _, svc := range a.Services {
		if svc.Status != ContainerRunning || svc.StartedAt == nil {
			continue
		}
		if age := now.Sub(*svc.StartedAt); age > maxAge {
			maxAge = age
		}
	}
	return maxAge
}

// Clone deep-copies the AppData so a caller holding a snapshot can never
// alias mutable state owned by the registry (spec §4.6).
func (a *AppData) Clone() *AppData {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Services = append([]ContainerState(nil), a.Services...)
	for i, svc := range a.Services {
		cp.Services[i].Ports = append([]ContainerPort(nil), svc.Ports...)
		if svc.StartedAt != nil {
			t := *svc.StartedAt
			cp.Services[i].StartedAt = &t
		}
	}
	cp.RequestedScopes = append([]string(nil), a.RequestedScopes...)
	if a.Settings != nil {
		s := *a.Settings
		if a.Settings.Environment != nil {
			s.Environment = make(map[string]string, len(a.Settings.Environment))
			for k, v := range a.Settings.Environment {
				s.Environment[k] = v
			}
		}
		s.PublicServices = append([]PublicService(nil), a.Settings.PublicServices...)
		s.Middlewares = append([]string(nil), a.Settings.Middlewares...)
		s.CustomDomains = append([]CustomDomainMapping(nil), a.Settings.CustomDomains...)
		s.NotifyReceivers = append([]string(nil), a.Settings.NotifyReceivers...)
		if a.Settings.BasicAuth != nil {
			ba := *a.Settings.BasicAuth
			s.BasicAuth = &ba
		}
		cp.Settings = &s
	}
	if a.RunningSince != nil {
		t := *a.RunningSince
		cp.RunningSince = &t
	}
	return &cp
}
