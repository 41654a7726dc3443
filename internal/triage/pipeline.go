// Package triage turns free-form patient text into a structured
// extraction plus a specialist routing decision, and appends the
// result to the clinical event log.
package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/careloop/triagelog/internal/llm"
	"github.com/careloop/triagelog/internal/metrics"
	"github.com/careloop/triagelog/internal/store"
)

const (
	// historyWindow bounds how many prior symptom events feed the
	// triage stage.
	historyWindow = 10

	minTextRunes = 2

	extractSystemPrompt = "You extract structured medical information."
	triageSystemPrompt  = "You are a cautious medical triage assistant."

	extractPrompt = `
User text: "%s"

Return STRICT JSON:
{
  "transcription_en": "...",
  "symptoms": ["symptom1", "symptom2"],
  "specific_suggestion": "short advice"
}
`

	triagePrompt = `
Patient history:
%s

Latest complaint:
"%s"

Return STRICT JSON:
{
  "specialist": "...",
  "reason": "...",
  "priority": "low | medium | high"
}
`
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Provenance values recorded in the event's extra.triage_source, so
// placeholder triage stays distinguishable from a genuine model
// result in the log.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

var (
	// ErrTextTooShort rejects input before any inference call is made.
	ErrTextTooShort = errors.New("text too short")
	// ErrInference is the only error surfaced when the inference
	// service itself fails; the underlying cause is logged, never
	// returned.
	ErrInference = errors.New("inference failed")
)

type Extraction struct {
	TranscriptionEN    string   `json:"transcription_en"`
	Symptoms           []string `json:"symptoms"`
	SpecificSuggestion string   `json:"specific_suggestion"`
}

type Triage struct {
	Specialist string `json:"specialist"`
	Reason     string `json:"reason"`
	Priority   string `json:"priority"`
}

// Result carries both stage outputs plus the appended event.
type Result struct {
	Extraction Extraction
	Triage     Triage
	Event      store.Event
}

func defaultExtraction(text string) Extraction {
	return Extraction{
		TranscriptionEN:    text,
		Symptoms:           []string{},
		SpecificSuggestion: "",
	}
}

func defaultTriage() Triage {
	return Triage{
		Specialist: "General Physician",
		Reason:     "General evaluation recommended.",
		Priority:   PriorityLow,
	}
}

// Notifier receives high-priority triage results after the event has
// been persisted. Delivery is best-effort.
type Notifier interface {
	TriageAlert(ctx context.Context, ev store.Event, tr Triage) error
}

type Pipeline struct {
	store    store.Store
	client   llm.Client
	log      *zap.Logger
	metrics  *metrics.Collector
	notifier Notifier
}

func NewPipeline(st store.Store, client llm.Client, log *zap.Logger, collector *metrics.Collector) *Pipeline {
	return &Pipeline{
		store:   st,
		client:  client,
		log:     log,
		metrics: collector,
	}
}

func (p *Pipeline) SetNotifier(n Notifier) {
	p.notifier = n
}

// Process runs extraction then triage and appends one symptom event.
// Unparseable model output falls back to safe defaults per stage; a
// failing inference call aborts the whole pipeline with ErrInference
// and writes nothing.
func (p *Pipeline) Process(ctx context.Context, text string) (*Result, error) {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minTextRunes {
		return nil, ErrTextTooShort
	}

	extraction, extractionOK, err := p.extract(ctx, trimmed)
	if err != nil {
		p.log.Error("extraction stage failed", zap.Error(err))
		return nil, fmt.Errorf("extraction stage: %w", ErrInference)
	}

	triaged, triageOK, err := p.classify(ctx, extraction.TranscriptionEN)
	if err != nil {
		if errors.Is(err, errLoadHistory) {
			return nil, err
		}
		p.log.Error("triage stage failed", zap.Error(err))
		return nil, fmt.Errorf("triage stage: %w", ErrInference)
	}

	source := SourceModel
	if !extractionOK || !triageOK {
		source = SourceFallback
	}

	ev, err := p.store.Append(store.TypeSymptom, extraction.TranscriptionEN, map[string]any{
		"triage":        triaged,
		"triage_source": source,
	})
	if err != nil {
		return nil, fmt.Errorf("append symptom event: %w", err)
	}
	p.countEvent(store.TypeSymptom)

	p.log.Info("symptom event recorded",
		zap.Int64("event_id", ev.ID),
		zap.String("specialist", triaged.Specialist),
		zap.String("priority", triaged.Priority),
		zap.String("triage_source", source),
	)

	if p.notifier != nil && triaged.Priority == PriorityHigh {
		if err := p.notifier.TriageAlert(ctx, ev, triaged); err != nil {
			p.log.Warn("triage alert delivery failed", zap.Error(err))
			p.countAlert("error")
		} else {
			p.countAlert("ok")
		}
	}

	return &Result{Extraction: extraction, Triage: triaged, Event: ev}, nil
}

func (p *Pipeline) extract(ctx context.Context, text string) (Extraction, bool, error) {
	raw, err := p.client.Complete(ctx, extractSystemPrompt, fmt.Sprintf(extractPrompt, text))
	if err != nil {
		p.countInference("extract", "error")
		return Extraction{}, false, err
	}

	if ex, ok := llm.Decode[Extraction](raw); ok {
		p.countInference("extract", "ok")
		return ex, true, nil
	}

	p.countInference("extract", "fallback")
	p.log.Warn("extraction output unparseable, substituting default",
		zap.Int("response_bytes", len(raw)))
	return defaultExtraction(text), false, nil
}

var errLoadHistory = errors.New("load history context")

func (p *Pipeline) classify(ctx context.Context, transcription string) (Triage, bool, error) {
	snap, err := p.store.Load()
	if err != nil {
		return Triage{}, false, fmt.Errorf("%w: %w", errLoadHistory, err)
	}

	contextJSON, err := json.Marshal(buildHistoryContext(snap.Events))
	if err != nil {
		return Triage{}, false, fmt.Errorf("%w: %w", errLoadHistory, err)
	}

	raw, err := p.client.Complete(ctx, triageSystemPrompt,
		fmt.Sprintf(triagePrompt, contextJSON, transcription))
	if err != nil {
		p.countInference("triage", "error")
		return Triage{}, false, err
	}

	if tr, ok := llm.Decode[Triage](raw); ok {
		p.countInference("triage", "ok")
		return tr, true, nil
	}

	p.countInference("triage", "fallback")
	p.log.Warn("triage output unparseable, substituting default",
		zap.Int("response_bytes", len(raw)))
	return defaultTriage(), false, nil
}

type historyEntry struct {
	Time    string `json:"time"`
	Symptom string `json:"symptom"`
}

// buildHistoryContext reduces the log to the last historyWindow
// symptom events in original order. History-type events never reach
// the model here.
func buildHistoryContext(events []store.Event) []historyEntry {
	entries := make([]historyEntry, 0, historyWindow)
	for _, ev := range events {
		if ev.Type != store.TypeSymptom {
			continue
		}
		entries = append(entries, historyEntry{Time: ev.Timestamp, Symptom: ev.Text})
	}
	if len(entries) > historyWindow {
		entries = entries[len(entries)-historyWindow:]
	}
	return entries
}

func (p *Pipeline) countInference(stage, outcome string) {
	if p.metrics != nil {
		p.metrics.InferenceCalls.WithLabelValues(stage, outcome).Inc()
	}
}

func (p *Pipeline) countEvent(eventType string) {
	if p.metrics != nil {
		p.metrics.EventsAppended.WithLabelValues(eventType).Inc()
	}
}

func (p *Pipeline) countAlert(outcome string) {
	if p.metrics != nil {
		p.metrics.AlertsTotal.WithLabelValues(outcome).Inc()
	}
}
