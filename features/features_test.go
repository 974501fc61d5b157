//go:build integration

package features

import (
	"os"
	"testing"

	"tourney-media/features/steps"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
)

// TestFeatures runs every scenario under features/. Set GODOG_TAGS
// (for example "@cut && ~@upload") to run a subset.
func TestFeatures(t *testing.T) {
	opts := godog.Options{
		Format:   "pretty",
		Output:   colors.Colored(os.Stdout),
		Paths:    []string{"./"},
		Tags:     os.Getenv("GODOG_TAGS"),
		Strict:   true,
		TestingT: t,
	}

	suite := godog.TestSuite{
		Name:                "tourney-media",
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			steps.InitializeTrimScenario(ctx)
			steps.InitializeCutScenario(ctx)
			steps.InitializeConfigScenario(ctx)
			steps.InitializeSetupScenario(ctx)
		},
		Options: &opts,
	}

	if suite.Run() != 0 {
		t.Fatal("feature scenarios failed")
	}
}
