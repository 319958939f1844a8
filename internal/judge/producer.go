package judge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/trufnetwork/waterjudge/internal/attest"
	"github.com/trufnetwork/waterjudge/internal/metrics"
)

// Sample is the raw submission a caller wants judged. Every field except the
// use case is optional; whatever is present is combined into the engine input.
type Sample struct {
	Subject          string            `json:"subject,omitempty"`
	UseCase          string            `json:"use_case"`
	SceneDescription string            `json:"scene_description,omitempty"`
	InputText        string            `json:"input_text,omitempty"`
	StripValues      map[string]string `json:"strip_values,omitempty"`
	Waterbody        map[string]string `json:"waterbody,omitempty"`
	Location         map[string]string `json:"location,omitempty"`
}

const DefaultUseCase = "drinking"

// suitabilityThresholds maps each use case to the minimum score at which the
// water is flagged suitable. Stricter uses need higher scores.
var suitabilityThresholds = map[string]float64{
	"drinking":   0.8,
	"human":      0.6,
	"animals":    0.5,
	"irrigation": 0.4,
}

const unknownUseCaseThreshold = 0.6

// Producer builds decision records from samples: it gathers the engine's
// assessment (or the fallback's), derives rule-based findings from strip
// readings, and assembles the closed DecisionRecord structure.
type Producer struct {
	engine   Engine
	fallback Engine
	cache    *assessmentCache
	logger   *zap.Logger
	recorder metrics.Recorder
	now      func() time.Time
}

func NewProducer(engine Engine, logger *zap.Logger, recorder metrics.Recorder) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = metrics.NewNoOpRecorder()
	}
	return &Producer{
		engine:   engine,
		fallback: NewFallbackEngine(),
		cache:    newAssessmentCache(),
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Produce turns a sample into a decision record ready for attestation. The
// record is validated before return, so the attestor's own validation is a
// second line of defense, not the first.
func (p *Producer) Produce(ctx context.Context, sample *Sample) (*attest.DecisionRecord, error) {
	if sample == nil {
		return nil, fmt.Errorf("sample is nil")
	}

	useCase := strings.ToLower(strings.TrimSpace(sample.UseCase))
	if useCase == "" {
		useCase = DefaultUseCase
	}

	input := combineInput(sample)
	digest := sampleDigest(input, useCase)

	assessment := p.assess(ctx, input, useCase, digest)

	decision := p.buildDecision(sample, assessment, useCase, digest)
	if err := decision.Validate(); err != nil {
		return nil, err
	}
	return decision, nil
}

func (p *Producer) assess(ctx context.Context, input, useCase, digest string) *Assessment {
	if cached, ok := p.cache.Get(digest); ok {
		p.logger.Debug("assessment cache hit", zap.String("digest", digest))
		return cached
	}

	started := p.now()
	assessment, err := p.engine.Analyze(ctx, input, useCase)
	p.recorder.RecordEngineLatency(ctx, p.now().Sub(started), err == nil)
	if err != nil {
		p.logger.Warn("analysis engine failed, using fallback", zap.Error(err))
		p.recorder.RecordEngineFallback(ctx, "engine_error")
		assessment, _ = p.fallback.Analyze(ctx, input, useCase)
		return assessment
	}

	p.cache.Put(digest, assessment)
	return assessment
}

func (p *Producer) buildDecision(sample *Sample, assessment *Assessment, useCase, digest string) *attest.DecisionRecord {
	score := clampScore(float64(assessment.HealthPercentage) / 100)

	flags := make(map[string]bool, len(suitabilityThresholds)+1)
	for use, threshold := range suitabilityThresholds {
		flags[use] = score >= threshold
	}
	if _, known := suitabilityThresholds[useCase]; !known {
		flags[useCase] = score >= unknownUseCaseThreshold
	}

	risks := EvaluateStrip(sample.StripValues)
	if strings.TrimSpace(assessment.RiskAnalysis) != "" {
		risks = append(risks, attest.RiskFinding{
			Category:    "general",
			Severity:    scoreSeverity(score),
			Explanation: assessment.RiskAnalysis,
		})
	}

	remediation := splitRemediationSteps(assessment.PurificationInstructions)
	if len(remediation) == 0 && len(risks) > 0 {
		remediation = defaultRemediationSteps()
	}

	subject := strings.TrimSpace(sample.Subject)
	if subject == "" {
		subject = digest
	}

	return &attest.DecisionRecord{
		Subject: subject,
		Verdict: attest.Verdict{
			Score:       score,
			Flags:       flags,
			Risks:       risks,
			Remediation: remediation,
		},
		ProducedAt: p.now().Unix(),
	}
}

// combineInput flattens the sample into the single prompt string the engine
// sees. Map sections are rendered in key order so the sample digest is stable.
func combineInput(sample *Sample) string {
	var parts []string
	if sample.SceneDescription != "" {
		parts = append(parts, "Scene: "+sample.SceneDescription)
	}
	if sample.InputText != "" {
		parts = append(parts, "Measurements: "+sample.InputText)
	}
	if section := renderSection(sample.StripValues); section != "" {
		parts = append(parts, "Test strips: "+section)
	}
	if section := renderSection(sample.Waterbody); section != "" {
		parts = append(parts, "Visual assessment: "+section)
	}
	if section := renderSection(sample.Location); section != "" {
		parts = append(parts, "Location: "+section)
	}
	if len(parts) == 0 {
		return "General water quality assessment requested"
	}
	return strings.Join(parts, ". ")
}

func renderSection(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	keys := lo.Keys(values)
	slices.Sort(keys)
	pairs := lo.FilterMap(keys, func(k string, _ int) (string, bool) {
		if values[k] == "" {
			return "", false
		}
		return k + ":" + values[k], true
	})
	return strings.Join(pairs, ", ")
}

func sampleDigest(input, useCase string) string {
	sum := sha256.Sum256([]byte(input + "\n" + useCase))
	return hex.EncodeToString(sum[:])
}

var stepSplitPattern = regexp.MustCompile(`(?m)(?:Step\s*\d+[:.]?|^\d+\.|\n\s*\d+\.|\n\s*[-*]\s+)`)

const (
	minStepLength = 10
	maxSteps      = 5
)

// splitRemediationSteps parses free-text purification instructions into an
// ordered step list. Engines answer with numbered steps, bullet lists, or
// plain sentences; sentences are the separator of last resort.
func splitRemediationSteps(instructions string) []string {
	if strings.TrimSpace(instructions) == "" {
		return nil
	}

	parts := stepSplitPattern.Split(instructions, -1)
	if len(parts) < 2 {
		parts = strings.Split(instructions, ". ")
	}

	steps := lo.FilterMap(parts, func(part string, _ int) (string, bool) {
		step := strings.TrimSpace(strings.Trim(strings.TrimSpace(part), "."))
		return step, len(step) >= minStepLength
	})
	if len(steps) > maxSteps {
		steps = steps[:maxSteps]
	}
	return steps
}

func defaultRemediationSteps() []string {
	return []string{
		"Filter water through clean cloth to remove visible particles",
		"Boil for 1 minute or use purification tablets",
		"Store in clean covered containers to avoid recontamination",
	}
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func scoreSeverity(score float64) attest.Severity {
	switch {
	case score < 0.25:
		return attest.SeverityCritical
	case score < 0.5:
		return attest.SeverityHigh
	case score < 0.75:
		return attest.SeverityMedium
	default:
		return attest.SeverityLow
	}
}
