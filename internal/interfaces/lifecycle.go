package interfaces

import (
	"context"

	"github.com/KevinKickass/OpenBatchCore/internal/config"
	"github.com/KevinKickass/OpenBatchCore/internal/orchestrator"
	"github.com/KevinKickass/OpenBatchCore/internal/status"
)

// SystemStatus is the composed report served to API and dashboard clients
type SystemStatus struct {
	State            string              `json:"state"`
	UptimeSeconds    float64             `json:"uptimeSeconds"`
	Ready            bool                `json:"ready"`
	Registers        status.Snapshot     `json:"registers"`
	Coordinator      orchestrator.Status `json:"coordinator"`
	Collaborators    Collaborators       `json:"collaborators"`
	ConnectedClients int                 `json:"connectedClients"`
}

// Collaborators lists the configured endpoints the coordinator talks to
type Collaborators struct {
	PLC            string `json:"plc"`
	Printheads     string `json:"printheads"`
	FeedConfigured bool   `json:"feedConfigured"`
}

type LifecycleManager interface {
	Config() *config.Config
	Tracker() *status.Tracker
	Coordinator() *orchestrator.Orchestrator
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
