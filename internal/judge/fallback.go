package judge

import (
	"context"
	"fmt"
)

// FallbackEngine produces a conservative assessment when the analysis engine
// is unreachable or returns garbage. It never fails: every sample gets a
// cautious middle-of-the-road judgment with generic treatment steps.
type FallbackEngine struct{}

func NewFallbackEngine() *FallbackEngine {
	return &FallbackEngine{}
}

const fallbackHealthPercentage = 50

func (f *FallbackEngine) Analyze(_ context.Context, _ string, useCase string) (*Assessment, error) {
	return &Assessment{
		HealthPercentage: fallbackHealthPercentage,
		CurrentSafetyAnalysis: fmt.Sprintf(
			"Unable to fully assess safety for %s use. Exercise caution and consider professional testing. "+
				"Basic filtration and disinfection recommended.", useCase),
		RiskAnalysis: "Potential risks include microbial contamination and chemical impurities. " +
			"Professional water testing advised for accurate risk assessment.",
		PurificationInstructions: "Filter through clean cloth. Boil for 1 minute or use purification tablets. " +
			"Store in clean containers and avoid recontamination.",
	}, nil
}
