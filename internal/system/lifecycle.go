package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KevinKickass/OpenBatchCore/internal/api/rest"
	"github.com/KevinKickass/OpenBatchCore/internal/api/websocket"
	"github.com/KevinKickass/OpenBatchCore/internal/auth"
	"github.com/KevinKickass/OpenBatchCore/internal/cloud"
	"github.com/KevinKickass/OpenBatchCore/internal/config"
	"github.com/KevinKickass/OpenBatchCore/internal/interfaces"
	"github.com/KevinKickass/OpenBatchCore/internal/orchestrator"
	"github.com/KevinKickass/OpenBatchCore/internal/plc"
	"github.com/KevinKickass/OpenBatchCore/internal/printer"
	"github.com/KevinKickass/OpenBatchCore/internal/status"
	"go.uber.org/zap"
)

const probeTimeout = 5 * time.Second

type LifecycleManager struct {
	config *config.Config
	logger *zap.Logger

	plcClient   *plc.Client
	cloudClient *cloud.Client
	printheads  *printer.DualClient
	tracker     *status.Tracker
	monitor     *status.Monitor
	coordinator *orchestrator.Orchestrator
	wsHub       *websocket.Hub

	restServer *rest.Server

	stateMu      sync.RWMutex
	currentState SystemState
	startedAt    time.Time

	cancelRun context.CancelFunc
	runWG     sync.WaitGroup

	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

func NewLifecycleManager(cfg *config.Config, logger *zap.Logger) *LifecycleManager {
	validator, err := cloud.NewValidator()
	if err != nil {
		logger.Fatal("Failed to compile batch feed schema", zap.Error(err))
	}

	plcClient := plc.NewClient(plc.Config{
		Host:       cfg.PLC.Host,
		Port:       cfg.PLC.Port,
		SlaveID:    cfg.PLC.SlaveID,
		Timeout:    cfg.PLC.Timeout,
		Attempts:   cfg.PLC.Attempts,
		RetryDelay: cfg.PLC.RetryDelay,
	}, logger)

	cloudClient := cloud.NewClient(cloud.Config{
		URL:        cfg.Cloud.URL,
		Timeout:    cfg.Cloud.Timeout,
		Attempts:   cfg.Cloud.Attempts,
		RetryDelay: cfg.Cloud.RetryDelay,
	}, validator, logger)

	printheads := printer.NewDualClient(printer.Config{
		Host:         cfg.Printer.Host,
		PortHead1:    cfg.Printer.PortHead1,
		PortHead2:    cfg.Printer.PortHead2,
		Timeout:      cfg.Printer.Timeout,
		CommandDelay: cfg.Printer.CommandDelay,
		Attempts:     cfg.Printer.Attempts,
		RetryDelay:   cfg.Printer.RetryDelay,
		ReadAck:      cfg.Printer.ReadAck,
	}, logger)

	wsHub := websocket.NewHub(logger)
	tracker := status.NewTracker(plcClient, logger)
	monitor := status.NewMonitor(tracker, cfg.Polling.Interval, logger, wsHub)
	coordinator := orchestrator.New(logger, plcClient, tracker, cloudClient, printheads, wsHub, cfg.Polling.Interval)

	lm := &LifecycleManager{
		config:       cfg,
		logger:       logger,
		plcClient:    plcClient,
		cloudClient:  cloudClient,
		printheads:   printheads,
		tracker:      tracker,
		monitor:      monitor,
		coordinator:  coordinator,
		wsHub:        wsHub,
		currentState: StateInitializing,
		shutdownChan: make(chan struct{}),
	}

	// New websocket clients get a full status report on connect.
	wsHub.SetStatusProvider(lm)

	return lm
}

// Start brings up every component. The PLC must be reachable; the feed
// and the printheads may come online later, their probes only warn.
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting OpenBatchCore")

	lm.setState(StateInitializing)
	lm.broadcastStatus()

	if err := lm.plcClient.EnsureConnected(); err != nil {
		lm.setError(err)
		return fmt.Errorf("plc connect failed: %w", err)
	}

	probeCtx, cancelProbe := context.WithTimeout(context.Background(), probeTimeout)
	defer cancelProbe()

	if err := lm.cloudClient.TestConnection(probeCtx); err != nil {
		lm.logger.Warn("Batch feed unreachable at startup", zap.Error(err))
	}
	if err := lm.printheads.TestConnections(probeCtx); err != nil {
		lm.logger.Warn("Printheads unreachable at startup", zap.Error(err))
	}

	// Clear whatever a previous run left in the control words.
	if err := lm.tracker.ResetSystemState(); err != nil {
		lm.logger.Warn("Failed to reset control words at startup", zap.Error(err))
	}

	go lm.wsHub.Run()

	runCtx, cancel := context.WithCancel(context.Background())
	lm.cancelRun = cancel

	lm.runWG.Add(2)
	go func() {
		defer lm.runWG.Done()
		lm.monitor.Run(runCtx)
	}()
	go func() {
		defer lm.runWG.Done()
		lm.coordinator.Run(runCtx)
	}()

	if err := lm.startRESTServer(); err != nil {
		lm.setError(fmt.Errorf("failed to start REST API: %w", err))
		return err
	}

	lm.stateMu.Lock()
	lm.startedAt = time.Now()
	lm.stateMu.Unlock()

	lm.setState(StateRunning)
	lm.broadcastStatus()

	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.String("plc", fmt.Sprintf("%s:%d", lm.config.PLC.Host, lm.config.PLC.Port)),
		zap.Duration("poll_interval", lm.config.Polling.Interval))

	return nil
}

func (lm *LifecycleManager) startRESTServer() error {
	if !lm.config.Auth.IsProductionReady() {
		lm.logger.Warn("Maintenance token secret is the development default")
	}

	tokens := auth.NewTokenHandler(lm.config.Auth.GetJWTSecret(), lm.config.Auth.TokenTTL)
	lm.restServer = rest.NewServer(lm.config, lm, lm.logger, lm.wsHub, tokens)
	return lm.restServer.Start()
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		lm.setState(StateStopping)
		lm.broadcastStatus()

		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)
		close(lm.shutdownChan)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	// 1. Stop the polling loops. A running operation observes the
	// cancellation at its next checkpoint.
	if lm.cancelRun != nil {
		lm.cancelRun()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		lm.runWG.Wait()
	}()

	// 2. REST API Server graceful shutdown
	if lm.restServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("rest api shutdown failed: %w", err)
			}
		}()
	}

	// Wait for all shutdowns
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		return fmt.Errorf("shutdown timeout exceeded")
	case err := <-errChan:
		return err
	}

	// Leave idle control words behind for the next run.
	if err := lm.tracker.ResetSystemState(); err != nil {
		lm.logger.Warn("Failed to reset control words at shutdown", zap.Error(err))
	}
	if err := lm.plcClient.Close(); err != nil {
		lm.logger.Warn("Failed to close controller connection", zap.Error(err))
	}

	lm.logger.Info("Graceful shutdown completed")
	return nil
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	state := lm.currentState
	startedAt := lm.startedAt
	lm.stateMu.RUnlock()

	var uptime float64
	if !startedAt.IsZero() {
		uptime = time.Since(startedAt).Seconds()
	}

	return interfaces.SystemStatus{
		State:         state.String(),
		UptimeSeconds: uptime,
		Ready:         lm.tracker.IsReady(),
		Registers:     lm.tracker.Snapshot(),
		Coordinator:   lm.coordinator.Status(),
		Collaborators: interfaces.Collaborators{
			PLC: fmt.Sprintf("%s:%d", lm.config.PLC.Host, lm.config.PLC.Port),
			Printheads: fmt.Sprintf("%s:%d,%d", lm.config.Printer.Host,
				lm.config.Printer.PortHead1, lm.config.Printer.PortHead2),
			FeedConfigured: lm.config.Cloud.URL != "",
		},
		ConnectedClients: lm.wsHub.GetClientCount(),
	}
}

// GetStatus feeds the websocket hub's welcome message.
func (lm *LifecycleManager) GetStatus() any {
	return lm.GetCurrentStatus()
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()

	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.logger.Warn("Unusual lifecycle transition", zap.Error(err))
	}
	lm.currentState = state
}

func (lm *LifecycleManager) setError(err error) {
	lm.logger.Error("Entering error state", zap.Error(err))

	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()
	lm.currentState = StateError
}

func (lm *LifecycleManager) broadcastStatus() {
	if lm.wsHub == nil {
		return
	}
	lm.wsHub.Broadcast(websocket.NewSystemStatusMessage(lm.GetCurrentStatus()))
}

// Config returns the configuration
func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}

// Tracker returns the register status tracker
func (lm *LifecycleManager) Tracker() *status.Tracker {
	return lm.tracker
}

// Coordinator returns the batch coordinator
func (lm *LifecycleManager) Coordinator() *orchestrator.Orchestrator {
	return lm.coordinator
}
