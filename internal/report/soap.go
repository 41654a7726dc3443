// Package report synthesizes a SOAP summary from the clinical event
// log. Unlike the triage pipeline there is no fallback record: a SOAP
// report cannot be meaningfully faked, so an unusable model response
// is a hard failure.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/careloop/triagelog/internal/llm"
	"github.com/careloop/triagelog/internal/metrics"
	"github.com/careloop/triagelog/internal/store"
)

// reportWindow bounds how many recent events feed the synthesis.
const reportWindow = 30

const (
	soapSystemPrompt = "You generate clinical SOAP reports."

	soapPrompt = `
Patient history:
%s

Return STRICT JSON with:
patient_summary, critical_alerts[], soap{subjective, objective, assessment, plan}
`
)

// ErrSynthesis is the only error surfaced to callers; causes are
// logged server-side.
var ErrSynthesis = errors.New("soap synthesis failed")

type SOAP struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

type Report struct {
	PatientSummary string   `json:"patient_summary"`
	CriticalAlerts []string `json:"critical_alerts"`
	SOAP           SOAP     `json:"soap"`
}

type Synthesizer struct {
	store   store.Store
	client  llm.Client
	log     *zap.Logger
	metrics *metrics.Collector
}

func NewSynthesizer(st store.Store, client llm.Client, log *zap.Logger, collector *metrics.Collector) *Synthesizer {
	return &Synthesizer{
		store:   st,
		client:  client,
		log:     log,
		metrics: collector,
	}
}

// Generate reads the most recent events and asks the model for a SOAP
// summary. It never writes to the store.
func (s *Synthesizer) Generate(ctx context.Context) (*Report, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	events := snap.Events
	if len(events) > reportWindow {
		events = events[len(events)-reportWindow:]
	}

	payload, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("encode history window: %w", err)
	}

	raw, err := s.client.Complete(ctx, soapSystemPrompt, fmt.Sprintf(soapPrompt, payload))
	if err != nil {
		s.count("error")
		s.log.Error("soap inference call failed", zap.Error(err))
		return nil, ErrSynthesis
	}

	rep, ok := llm.Decode[Report](raw)
	if !ok {
		s.count("unparseable")
		s.log.Error("soap output unparseable", zap.Int("response_bytes", len(raw)))
		return nil, ErrSynthesis
	}

	s.count("ok")
	s.log.Info("soap report generated",
		zap.Int("events", len(events)),
		zap.Int("critical_alerts", len(rep.CriticalAlerts)),
	)
	return &rep, nil
}

func (s *Synthesizer) count(outcome string) {
	if s.metrics != nil {
		s.metrics.ReportsTotal.WithLabelValues(outcome).Inc()
	}
}
