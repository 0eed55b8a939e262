package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/acilhq/acil/internal/domain/patient"
	"github.com/acilhq/acil/internal/platform/ai"
)

// trendWindow is how many recent vitals entries feed the trend summary and
// the analysis prompt.
const trendWindow = 10

// stableTolerance is the relative change below which a vital counts as
// stable rather than rising or falling.
const stableTolerance = 0.05

const systemPrompt = `You are a clinical decision-support assistant for an emergency department.
Summarize the patient's trajectory from the data provided. Be concise, flag
concerning trends, and never invent measurements that are not in the data.`

type Service struct {
	analyses Repository
	patients *patient.Service
	provider ai.Provider
}

func NewService(analyses Repository, patients *patient.Service, provider ai.Provider) *Service {
	return &Service{analyses: analyses, patients: patients, provider: provider}
}

// Run builds a prompt from the patient's record and recent vitals, calls
// the configured provider, and stores the result. The caller is expected to
// have passed the ai_analysis rate-limit class before reaching this.
func (s *Service) Run(ctx context.Context, patientID, requestedBy uuid.UUID) (*AIAnalysis, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no ai provider configured")
	}

	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	vitals, err := s.patients.RecentVitals(ctx, patientID, trendWindow)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(p, vitals, Trends(vitals))

	resp, err := s.provider.Complete(ctx, ai.Request{
		System:    systemPrompt,
		Prompt:    prompt,
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, err
	}

	a := &AIAnalysis{
		PatientID:    patientID,
		RequestedBy:  requestedBy,
		Provider:     s.provider.Name(),
		Model:        resp.Model,
		Prompt:       prompt,
		Result:       resp.Text,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}
	if err := s.analyses.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*AIAnalysis, error) {
	return s.analyses.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AIAnalysis, int, error) {
	return s.analyses.ListByPatient(ctx, patientID, limit, offset)
}

// TrendsForPatient computes vitals trends from the patient's recent
// entries without calling the AI provider.
func (s *Service) TrendsForPatient(ctx context.Context, patientID uuid.UUID) ([]VitalTrend, error) {
	vitals, err := s.patients.RecentVitals(ctx, patientID, trendWindow)
	if err != nil {
		return nil, err
	}
	return Trends(vitals), nil
}

// Trends computes mean and direction per vital from entries ordered newest
// first (the repository's Recent order). Direction compares the newest
// reading against the oldest.
func Trends(entries []*patient.VitalsEntry) []VitalTrend {
	type series struct {
		name   string
		values []float64 // oldest first
	}
	collect := func(name string, pick func(*patient.VitalsEntry) *float64) series {
		s := series{name: name}
		for i := len(entries) - 1; i >= 0; i-- {
			if v := pick(entries[i]); v != nil {
				s.values = append(s.values, *v)
			}
		}
		return s
	}

	intVital := func(get func(*patient.VitalsEntry) *int) func(*patient.VitalsEntry) *float64 {
		return func(e *patient.VitalsEntry) *float64 {
			if v := get(e); v != nil {
				f := float64(*v)
				return &f
			}
			return nil
		}
	}

	all := []series{
		collect("heart_rate", intVital(func(e *patient.VitalsEntry) *int { return e.HeartRate })),
		collect("blood_pressure_sys", intVital(func(e *patient.VitalsEntry) *int { return e.BloodPressureSys })),
		collect("temperature", func(e *patient.VitalsEntry) *float64 { return e.Temperature }),
		collect("respiratory_rate", intVital(func(e *patient.VitalsEntry) *int { return e.RespiratoryRate })),
		collect("oxygen_saturation", intVital(func(e *patient.VitalsEntry) *int { return e.OxygenSaturation })),
	}

	var trends []VitalTrend
	for _, s := range all {
		if len(s.values) == 0 {
			continue
		}
		var sum float64
		for _, v := range s.values {
			sum += v
		}
		mean := sum / float64(len(s.values))

		direction := TrendStable
		if len(s.values) >= 2 {
			first, last := s.values[0], s.values[len(s.values)-1]
			base := math.Abs(first)
			if base == 0 {
				base = 1
			}
			change := (last - first) / base
			switch {
			case change > stableTolerance:
				direction = TrendRising
			case change < -stableTolerance:
				direction = TrendFalling
			}
		}

		trends = append(trends, VitalTrend{
			Vital:     s.name,
			Mean:      math.Round(mean*10) / 10,
			Direction: direction,
			Samples:   len(s.values),
		})
	}
	return trends
}

func buildPrompt(p *patient.Patient, vitals []*patient.VitalsEntry, trends []VitalTrend) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s\nStatus: %s\nComplaint: %s\n", p.FullName, p.Status, p.Complaint)

	if len(trends) > 0 {
		b.WriteString("\nVitals trends (recent window):\n")
		for _, t := range trends {
			fmt.Fprintf(&b, "- %s: mean %.1f, %s over %d samples\n", t.Vital, t.Mean, t.Direction, t.Samples)
		}
	}

	if len(vitals) > 0 {
		b.WriteString("\nRecent entries (newest first):\n")
		for _, v := range vitals {
			fmt.Fprintf(&b, "- %s:", v.RecordedAt.Format("2006-01-02 15:04"))
			if v.HeartRate != nil {
				fmt.Fprintf(&b, " HR %d", *v.HeartRate)
			}
			if v.BloodPressureSys != nil && v.BloodPressureDia != nil {
				fmt.Fprintf(&b, " BP %d/%d", *v.BloodPressureSys, *v.BloodPressureDia)
			}
			if v.Temperature != nil {
				fmt.Fprintf(&b, " T %.1f", *v.Temperature)
			}
			if v.RespiratoryRate != nil {
				fmt.Fprintf(&b, " RR %d", *v.RespiratoryRate)
			}
			if v.OxygenSaturation != nil {
				fmt.Fprintf(&b, " SpO2 %d%%", *v.OxygenSaturation)
			}
			b.WriteString("\n")
		}
	} else {
		b.WriteString("\nNo vitals recorded yet.\n")
	}

	return b.String()
}
