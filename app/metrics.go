package app

import (
	"github.com/calehh/bridge-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespaceBridge = "bridge"
	subsystemApp    = "app"

	labelTxType  = "type"
	labelCode    = "code"
	labelOutcome = "outcome"
)

type Metrics struct {
	height            prometheus.Gauge
	txs               *prometheus.CounterVec
	proposals         *prometheus.CounterVec
	executionFailures prometheus.Counter
}

// NewMetrics registers the app collectors with reg. A nil reg keeps them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		height: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "committed_height",
			Namespace: namespaceBridge,
			Subsystem: subsystemApp,
			Help:      "the last committed block height",
		}),
		txs: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "txs_total",
			Namespace: namespaceBridge,
			Subsystem: subsystemApp,
			Help:      "the number of finalized txs by type and result code",
		}, []string{labelTxType, labelCode}),
		proposals: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "proposals_total",
			Namespace: namespaceBridge,
			Subsystem: subsystemApp,
			Help:      "the number of proposal transitions by outcome",
		}, []string{labelOutcome}),
		executionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name:      "execution_failures_total",
			Namespace: namespaceBridge,
			Subsystem: subsystemApp,
			Help:      "the number of accepted proposals whose action could not be applied",
		}),
	}
}

func (m *Metrics) observeEvents(events []abcitypes.Event) {
	for _, ev := range events {
		switch ev.Type {
		case types.EventMintProposedType, types.EventBurnProposedType:
			m.proposals.WithLabelValues("created").Inc()
		case types.EventProposalAcceptedType:
			m.proposals.WithLabelValues("accepted").Inc()
		case types.EventProposalRejectedType:
			m.proposals.WithLabelValues("rejected").Inc()
		case types.EventProposalExpiredType:
			m.proposals.WithLabelValues("expired").Inc()
		case types.EventExecutionFailedType:
			m.executionFailures.Inc()
		}
	}
}
