package guard

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"reqgather/internal/intent"
	"reqgather/internal/metrics"
	"reqgather/internal/output"
)

const (
	DefaultMaxRetries      = 3
	DefaultTemperatureStep = 0.2
)

// Apology replaces a question that is still a duplicate after every retry.
const Apology = "I'm sorry, I seem to be going in circles. Let's move on: " +
	"please share anything about your project that we have not covered yet, or reply \"skip\" to continue."

// Regenerate asks the model again with a corrective instruction at the given
// temperature.
type Regenerate func(ctx context.Context, correction string, temperature float64) (output.Result, error)

// Outcome reports what the loop did to a result.
type Outcome struct {
	Regenerations int
	Reasons       []Reason
	ForcedReject  bool
}

// Loop wraps question generation in a bounded retry envelope.
type Loop struct {
	Detector        *Detector
	MaxRetries      int
	BaseTemperature float64
	TemperatureStep float64

	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewLoop(log *zap.Logger, m *metrics.Metrics) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		Detector:        NewDetector(),
		MaxRetries:      DefaultMaxRetries,
		TemperatureStep: DefaultTemperatureStep,
		log:             log,
		metrics:         m,
	}
}

// Review accepts res unless it is an ASK whose question duplicates asked or
// fishes for input. Flagged questions are regenerated at most MaxRetries
// times; if the last one is still flagged the result becomes a REJECT
// carrying Apology, and the reply to it is filed as additional info. Regeneration errors abort the turn.
func (l *Loop) Review(ctx context.Context, res output.Result, asked []string, regen Regenerate) (output.Result, Outcome, error) {
	var out Outcome
	for attempt := 0; ; attempt++ {
		if res.Status != output.StatusAsk {
			return res, out, nil
		}
		v := l.Detector.Check(res.Question, asked)
		if !v.Duplicate {
			return res, out, nil
		}
		out.Reasons = append(out.Reasons, v.Reason)
		l.log.Info("🔁 question rejected by guard",
			zap.String("reason", string(v.Reason)),
			zap.String("question", res.Question),
			zap.String("match", v.Match),
			zap.Int("attempt", attempt))

		if attempt >= l.MaxRetries {
			break
		}
		l.metrics.Regeneration(string(v.Reason))
		temp := l.BaseTemperature + float64(attempt+1)*l.TemperatureStep
		next, err := regen(ctx, Correction(res.Question, v), temp)
		out.Regenerations++
		if err != nil {
			return output.Result{}, out, fmt.Errorf("regenerate question: %w", err)
		}
		res = next
	}

	l.metrics.ForcedReject()
	l.log.Warn("⛔ regeneration budget exhausted, forcing reject", zap.Int("regenerations", out.Regenerations))
	out.ForcedReject = true
	res.Status = output.StatusReject
	res.Question = Apology
	res.Pending = intent.New(intent.AdditionalInfo, "")
	return res, out, nil
}

// Correction is the instruction appended when a question is regenerated.
func Correction(question string, v Verdict) string {
	switch v.Reason {
	case ReasonExact:
		return fmt.Sprintf("CORRECTION: the question %q was already asked. Ask about a different missing field.", question)
	case ReasonSemantic:
		return fmt.Sprintf("CORRECTION: the question %q repeats an earlier question about %q (%q). "+
			"Treat that subject as covered and ask about a different missing field.", question, v.Subject, v.Match)
	case ReasonFishing:
		return fmt.Sprintf("CORRECTION: the question %q is open-ended (%q). "+
			"Ask one specific question about a concrete missing field instead.", question, v.Match)
	}
	return fmt.Sprintf("CORRECTION: rephrase the question %q.", question)
}
