package report

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/careloop/triagelog/internal/store"
)

type fakeClient struct {
	response string
	err      error
	lastUser string
}

func (f *fakeClient) Complete(ctx context.Context, system, user string) (string, error) {
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newTestSynthesizer(t *testing.T, client *fakeClient) (*Synthesizer, store.Store) {
	t.Helper()
	st := store.NewFileStore(filepath.Join(t.TempDir(), "data.json"))
	return NewSynthesizer(st, client, zap.NewNop(), nil), st
}

func TestGenerate_ParsesModelReport(t *testing.T) {
	client := &fakeClient{response: `Here you go:
{"patient_summary":"Middle-aged patient with recurring migraines.","critical_alerts":["possible neurological cause"],"soap":{"subjective":"headaches","objective":"no exam data","assessment":"migraine","plan":"neurology referral"}}`}
	synth, st := newTestSynthesizer(t, client)

	if _, err := st.Append(store.TypeSymptom, "migraine", nil); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	rep, err := synth.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if rep.PatientSummary != "Middle-aged patient with recurring migraines." {
		t.Fatalf("summary = %q", rep.PatientSummary)
	}
	if len(rep.CriticalAlerts) != 1 {
		t.Fatalf("alerts = %v", rep.CriticalAlerts)
	}
	if rep.SOAP.Plan != "neurology referral" {
		t.Fatalf("plan = %q", rep.SOAP.Plan)
	}
}

func TestGenerate_UnparseableOutputIsHardFailure(t *testing.T) {
	for name, response := range map[string]string{
		"prose":        "I am unable to produce a report.",
		"empty object": "{}",
	} {
		t.Run(name, func(t *testing.T) {
			client := &fakeClient{response: response}
			synth, st := newTestSynthesizer(t, client)

			if _, err := st.Append(store.TypeSymptom, "fever", nil); err != nil {
				t.Fatalf("Append error: %v", err)
			}

			if _, err := synth.Generate(context.Background()); !errors.Is(err, ErrSynthesis) {
				t.Fatalf("error = %v, want ErrSynthesis", err)
			}

			snap, err := st.Load()
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			if len(snap.Events) != 1 {
				t.Fatalf("events = %d, generation must not mutate the store", len(snap.Events))
			}
		})
	}
}

func TestGenerate_ServiceFailureIsHardFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("connection reset")}
	synth, _ := newTestSynthesizer(t, client)

	if _, err := synth.Generate(context.Background()); !errors.Is(err, ErrSynthesis) {
		t.Fatalf("error = %v, want ErrSynthesis", err)
	}
}

func TestGenerate_WindowKeepsLastThirtyEvents(t *testing.T) {
	client := &fakeClient{response: `{"patient_summary":"s","critical_alerts":[],"soap":{"subjective":"s","objective":"o","assessment":"a","plan":"p"}}`}
	synth, st := newTestSynthesizer(t, client)

	for i := 1; i <= 35; i++ {
		if _, err := st.Append(store.TypeSymptom, fmt.Sprintf("entry-%02d", i), nil); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	if _, err := synth.Generate(context.Background()); err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	for i := 6; i <= 35; i++ {
		want := fmt.Sprintf("entry-%02d", i)
		if !strings.Contains(client.lastUser, want) {
			t.Fatalf("prompt missing %q within the window", want)
		}
	}
	for i := 1; i <= 5; i++ {
		absent := fmt.Sprintf("entry-%02d", i)
		if strings.Contains(client.lastUser, absent) {
			t.Fatalf("prompt must not contain %q", absent)
		}
	}
}
