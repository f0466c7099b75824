package observability

import (
	"github.com/danmuck/iggywire/internal/protocol"
	"github.com/danmuck/iggywire/internal/protocol/fault"
	"github.com/danmuck/iggywire/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// DecodeObserver records session decode events as prometheus metrics.
type DecodeObserver struct {
	Node string
}

func NewDecodeObserver(node string) *DecodeObserver {
	RegisterMetrics()
	return &DecodeObserver{Node: node}
}

func (o *DecodeObserver) ObserveFrame(dir frame.Direction, size int) {
	framesTotal.WithLabelValues(o.Node, dir.String()).Inc()
	frameBytes.WithLabelValues(o.Node, dir.String()).Add(float64(size))
}

func (o *DecodeObserver) ObserveMessage(m protocol.Message) {
	command := m.CommandName
	if command == "" {
		command = "unknown"
	}
	status := ""
	if m.IsResponse() {
		status = m.StatusName
	}
	messagesTotal.WithLabelValues(o.Node, m.Direction.String(), command, status).Inc()
	if m.IsRequest() && !m.Known() && len(m.Faults) == 0 {
		// the code is logged, never used as a label
		unknownCommands.WithLabelValues(o.Node).Inc()
		log.Debug().Str("node", o.Node).Uint32("code", m.Code).Uint64("seq", m.Seq).Msg("observability unknown command")
		faultsTotal.WithLabelValues(o.Node, m.Direction.String(), fault.UnknownCommandCode.String()).Inc()
	}
	for _, f := range m.Faults {
		faultsTotal.WithLabelValues(o.Node, m.Direction.String(), f.Kind.String()).Inc()
	}
}

func (o *DecodeObserver) ObserveFault(dir frame.Direction, f fault.Fault) {
	faultsTotal.WithLabelValues(o.Node, dir.String(), f.Kind.String()).Inc()
}
