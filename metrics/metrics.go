// Package metrics exposes the daemon's Prometheus instrumentation: command
// throughput, sense-key distribution, pipeline byte counts, and the
// initiator clone engine's bad-sector tally.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every metric this module emits, grouped so each producer
// (command dispatch, the transfer pipeline, the initiator scanner) updates
// its own slice without reaching into the others.
type Registry struct {
	CommandsTotal    *prometheus.CounterVec
	SenseKeysTotal   *prometheus.CounterVec
	PipelineBytes    *prometheus.CounterVec
	BadSectorsTotal  prometheus.Counter
	CloneOperations  *prometheus.CounterVec
}

// NewRegistry builds a Registry and registers every metric with reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scsicore",
			Name:      "commands_total",
			Help:      "SCSI commands dispatched, by opcode and resulting status.",
		}, []string{"opcode", "status"}),
		SenseKeysTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scsicore",
			Name:      "sense_keys_total",
			Help:      "CHECK_CONDITION responses, by latched sense key.",
		}, []string{"sense_key"}),
		PipelineBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scsicore",
			Name:      "pipeline_bytes_total",
			Help:      "Bytes moved through the transfer pipeline, by direction.",
		}, []string{"direction"}),
		BadSectorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scsicore",
			Name:      "initiator_bad_sectors_total",
			Help:      "Sectors the initiator clone engine could not read after exhausting retries.",
		}),
		CloneOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scsicore",
			Name:      "initiator_clone_operations_total",
			Help:      "Clone operations completed, by outcome (ok, paused, failed).",
		}, []string{"outcome"}),
	}
	reg.MustRegister(r.CommandsTotal, r.SenseKeysTotal, r.PipelineBytes, r.BadSectorsTotal, r.CloneOperations)
	return r
}

// ObserveCommand records one dispatched command by opcode and outcome.
func (r *Registry) ObserveCommand(opcode byte, status byte) {
	r.CommandsTotal.WithLabelValues(opcodeLabel(opcode), statusLabel(status)).Inc()
}

// ObserveSenseKey records one latched sense key.
func (r *Registry) ObserveSenseKey(key byte) {
	r.SenseKeysTotal.WithLabelValues(senseKeyLabel(key)).Inc()
}

// AddPipelineBytes accumulates bytes moved in one direction ("read" or
// "write").
func (r *Registry) AddPipelineBytes(direction string, n uint64) {
	r.PipelineBytes.WithLabelValues(direction).Add(float64(n))
}

// AddBadSectors accumulates sectors the initiator gave up on.
func (r *Registry) AddBadSectors(n int) {
	r.BadSectorsTotal.Add(float64(n))
}

// ObserveClone records one clone operation's outcome.
func (r *Registry) ObserveClone(outcome string) {
	r.CloneOperations.WithLabelValues(outcome).Inc()
}
