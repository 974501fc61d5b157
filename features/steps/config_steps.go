//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tourney-media/cmd"
	"tourney-media/infrastructure/config"

	"github.com/cucumber/godog"
)

// configContext holds test state for config scenarios
type configContext struct {
	tempDir    string
	configPath string
	cfg        *config.Config
	output     *bytes.Buffer
	err        error
}

func InitializeConfigScenario(ctx *godog.ScenarioContext) {
	c := &configContext{}

	ctx.Before(func(gctx context.Context, sc *godog.Scenario) (context.Context, error) {
		dir, err := tempDir("config-test-*")
		if err != nil {
			return gctx, err
		}
		*c = configContext{
			tempDir:    dir,
			configPath: filepath.Join(dir, "config", "config.yaml"),
			output:     &bytes.Buffer{},
		}
		return gctx, nil
	})

	ctx.After(func(gctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		os.RemoveAll(c.tempDir)
		return gctx, nil
	})

	ctx.Step(`^a configuration file containing:$`, c.aConfigurationFileContaining)
	ctx.Step(`^a default configuration file$`, c.aDefaultConfigurationFile)
	ctx.Step(`^I run config get "([^"]*)"$`, c.iRunConfigGet)
	ctx.Step(`^I run config set "([^"]*)" to "([^"]*)"$`, c.iRunConfigSet)
	ctx.Step(`^I run config list$`, c.iRunConfigList)
	ctx.Step(`^the saved setting "([^"]*)" should be "([^"]*)"$`, c.theSavedSettingShouldBe)
	ctx.Step(`^the config command should succeed$`, c.theCommandShouldSucceed)
	ctx.Step(`^the config command should fail with "([^"]*)"$`, c.theCommandShouldFailWith)
	ctx.Step(`^the config output should contain "([^"]*)"$`, c.theOutputShouldContain)
	ctx.Step(`^the config output should not contain "([^"]*)"$`, c.theOutputShouldNotContain)
}

func (c *configContext) aConfigurationFileContaining(content *godog.DocString) error {
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(c.configPath, []byte(content.Content), 0600); err != nil {
		return err
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

func (c *configContext) aDefaultConfigurationFile() error {
	c.cfg = config.Defaults()
	return config.Save(c.cfg, c.configPath)
}

func (c *configContext) iRunConfigGet(key string) error {
	c.err = cmd.RunConfigGetWithDependencies(c.cfg, c.configPath, key, c.output)
	return nil
}

func (c *configContext) iRunConfigSet(key, value string) error {
	c.err = cmd.RunConfigSetWithDependencies(c.cfg, c.configPath, key, value, c.output)
	return nil
}

func (c *configContext) iRunConfigList() error {
	c.err = cmd.RunConfigListWithDependencies(c.cfg, c.configPath, c.output)
	return nil
}

func (c *configContext) theSavedSettingShouldBe(key, want string) error {
	saved, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	got, err := config.NewConfigManager(saved, c.configPath).Get(key)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("saved %s = %q, want %q", key, got, want)
	}
	return nil
}

func (c *configContext) theCommandShouldSucceed() error {
	if c.err != nil {
		return fmt.Errorf("unexpected error: %v", c.err)
	}
	return nil
}

func (c *configContext) theCommandShouldFailWith(message string) error {
	if c.err == nil || !strings.Contains(c.err.Error(), message) {
		return fmt.Errorf("error = %v, want containing %q", c.err, message)
	}
	return nil
}

func (c *configContext) theOutputShouldContain(text string) error {
	if !strings.Contains(c.output.String(), text) {
		return fmt.Errorf("output does not contain %q:\n%s", text, c.output.String())
	}
	return nil
}

func (c *configContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(c.output.String(), text) {
		return fmt.Errorf("output contains %q:\n%s", text, c.output.String())
	}
	return nil
}
