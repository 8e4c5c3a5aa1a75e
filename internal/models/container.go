package models

import "time"

// ContainerStatus is the derived lifecycle status of a single service
// container (spec §3 ContainerState).
type ContainerStatus string

const (
	ContainerRunning    ContainerStatus = "Running"
	ContainerExited     ContainerStatus = "Exited"
	ContainerCreated    ContainerStatus = "Created"
	ContainerPaused     ContainerStatus = "Paused"
	ContainerRestarting ContainerStatus = "Restarting"
	ContainerRemoving   ContainerStatus = "Removing"
	ContainerDead       ContainerStatus = "Dead"
	ContainerUnknown    ContainerStatus = "Unknown"
)

// ContainerPort is one published port mapping for a service.
type ContainerPort struct {
	HostPort      uint16 `json:"host_port,omitempty" yaml:"host_port,omitempty"`
	ContainerPort uint16 `json:"container_port" yaml:"container_port"`
	Protocol      string `json:"protocol" yaml:"protocol"`
}

// ContainerState is one service of an app (spec §3).
type ContainerState struct {
	Service   string          `json:"service"`
	Image     string          `json:"image"`
	Status    ContainerStatus `json:"status"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
	Ports     []ContainerPort `json:"ports,omitempty"`
	Domain    string          `json:"domain,omitempty"`
}

// NormalizeDockerState maps a raw Docker container State string to the
// closed ContainerStatus enum.
func NormalizeDockerState(state string) ContainerStatus {
	switch state {
	case "running":
		return ContainerRunning
	case "exited":
		return ContainerExited
	case "created":
		return ContainerCreated
	case "paused":
		return ContainerPaused
	case "restarting":
		return ContainerRestarting
	case "removing":
		return ContainerRemoving
	case "dead":
		return ContainerDead
	default:
		return ContainerUnknown
	}
}
