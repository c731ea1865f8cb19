package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// OperationsTotal counts finished trigger operations.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batchcore_operations_total",
			Help: "Total trigger operations by type and result.",
		},
		[]string{"operation", "result"}, // operation: download_batch/load_to_printer, result: success/failure
	)

	// OperationDuration records how long one operation took end to end.
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "batchcore_operation_duration_seconds",
			Help:    "Duration of trigger operations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// RegisterReadsTotal counts PLC register read calls.
	RegisterReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batchcore_register_reads_total",
			Help: "Total PLC register read calls.",
		},
		[]string{"result"},
	)

	// RegisterWritesTotal counts PLC register write calls.
	RegisterWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batchcore_register_writes_total",
			Help: "Total PLC register write calls.",
		},
		[]string{"result"},
	)

	// FetchRequestsTotal counts batch feed requests.
	FetchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batchcore_fetch_requests_total",
			Help: "Total batch feed HTTP requests.",
		},
		[]string{"result"},
	)

	// PrinterSendsTotal counts command sets sent per printhead.
	PrinterSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batchcore_printer_sends_total",
			Help: "Total printer command-set sends per printhead.",
		},
		[]string{"printhead", "result"},
	)

	// ProcessingState mirrors the processing-state control word.
	ProcessingState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "batchcore_processing_state",
			Help: "Current processing-state word (0=idle ... 9=error).",
		},
	)

	// TriggerState mirrors the trigger control word.
	TriggerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "batchcore_trigger_state",
			Help: "Current trigger word (0=idle, 1=download, 2=load).",
		},
	)

	// ErrorCode mirrors the error-code control word.
	ErrorCode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "batchcore_error_code",
			Help: "Current error-code word (0=no error).",
		},
	)

	// WebsocketClients tracks connected live-event clients.
	WebsocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "batchcore_websocket_clients",
			Help: "Currently connected websocket clients.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		OperationsTotal,
		OperationDuration,
		RegisterReadsTotal,
		RegisterWritesTotal,
		FetchRequestsTotal,
		PrinterSendsTotal,
		ProcessingState,
		TriggerState,
		ErrorCode,
		WebsocketClients,
	)
}
