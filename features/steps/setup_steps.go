//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"tourney-media/cmd"
	"tourney-media/infrastructure/config"

	"github.com/cucumber/godog"
)

// MockPrompter implements cmd.Prompter by answering prompts in order.
// An exhausted queue answers with the prompt's default.
type MockPrompter struct {
	inputs   []string
	choices  []string
	confirms []bool
	password string
}

func (m *MockPrompter) Input(message string, defaultValue string) (string, error) {
	if len(m.inputs) == 0 {
		return defaultValue, nil
	}
	next := m.inputs[0]
	m.inputs = m.inputs[1:]
	return next, nil
}

func (m *MockPrompter) Password(message string) (string, error) {
	return m.password, nil
}

func (m *MockPrompter) Select(message string, options []string, defaultValue string) (string, error) {
	if len(m.choices) == 0 {
		return defaultValue, nil
	}
	next := m.choices[0]
	m.choices = m.choices[1:]
	for _, o := range options {
		if o == next {
			return next, nil
		}
	}
	return "", fmt.Errorf("%q is not one of %v", next, options)
}

func (m *MockPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	if len(m.confirms) == 0 {
		return defaultValue, nil
	}
	next := m.confirms[0]
	m.confirms = m.confirms[1:]
	return next, nil
}

type setupContext struct {
	tempDir         string
	configPath      string
	originalContent string
	prompter        *MockPrompter
	output          *bytes.Buffer
	err             error
}

func InitializeSetupScenario(ctx *godog.ScenarioContext) {
	s := &setupContext{}

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		dir, err := tempDir("setup-test-*")
		if err != nil {
			return c, err
		}
		*s = setupContext{
			tempDir:    dir,
			configPath: filepath.Join(dir, "config", "config.yaml"),
			prompter:   &MockPrompter{},
			output:     &bytes.Buffer{},
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		os.RemoveAll(s.tempDir)
		return c, nil
	})

	ctx.Step(`^no config file exists for setup$`, s.noConfigFileExistsForSetup)
	ctx.Step(`^a config file already exists for setup$`, s.aConfigFileAlreadyExistsForSetup)
	ctx.Step(`^I answer the setup prompts with:$`, s.iAnswerTheSetupPromptsWith)
	ctx.Step(`^I answer "(yes|no)" to overwriting the config$`, s.iAnswerToOverwriting)
	ctx.Step(`^I run the setup command$`, s.iRunTheSetupCommand)
	ctx.Step(`^the setup config should have "([^"]*)" set to "([^"]*)"$`, s.theSetupConfigShouldHave)
	ctx.Step(`^the setup should be cancelled$`, s.theSetupShouldBeCancelled)
	ctx.Step(`^the setup should fail with "([^"]*)"$`, s.theSetupShouldFailWith)
	ctx.Step(`^the existing config should be unchanged$`, s.theExistingConfigShouldBeUnchanged)
}

func (s *setupContext) noConfigFileExistsForSetup() error {
	os.Remove(s.configPath)
	return nil
}

func (s *setupContext) aConfigFileAlreadyExistsForSetup() error {
	cfg := config.Defaults()
	cfg.OBS.Address = "ws://10.0.0.9:4455"
	if err := config.Save(cfg, s.configPath); err != nil {
		return err
	}
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return err
	}
	s.originalContent = string(data)
	return nil
}

// iAnswerTheSetupPromptsWith reads a two-column table of kind and answer,
// where kind is input, select, confirm or password
func (s *setupContext) iAnswerTheSetupPromptsWith(table *godog.Table) error {
	for _, row := range table.Rows {
		kind, answer := row.Cells[0].Value, row.Cells[1].Value
		switch kind {
		case "input":
			s.prompter.inputs = append(s.prompter.inputs, answer)
		case "select":
			s.prompter.choices = append(s.prompter.choices, answer)
		case "confirm":
			s.prompter.confirms = append(s.prompter.confirms, answer == "yes")
		case "password":
			s.prompter.password = answer
		default:
			return fmt.Errorf("unknown prompt kind %q", kind)
		}
	}
	return nil
}

func (s *setupContext) iAnswerToOverwriting(answer string) error {
	s.prompter.confirms = append([]bool{answer == "yes"}, s.prompter.confirms...)
	return nil
}

func (s *setupContext) iRunTheSetupCommand() error {
	s.err = cmd.RunSetupWithPrompter(s.prompter, s.configPath, s.output)
	return nil
}

func (s *setupContext) theSetupConfigShouldHave(key, want string) error {
	if s.err != nil {
		return fmt.Errorf("setup failed: %v", s.err)
	}
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return err
	}
	got, err := config.NewConfigManager(cfg, s.configPath).Get(key)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%s = %q, want %q", key, got, want)
	}
	return nil
}

func (s *setupContext) theSetupShouldBeCancelled() error {
	if s.err != nil {
		return fmt.Errorf("unexpected error: %v", s.err)
	}
	if !bytes.Contains(s.output.Bytes(), []byte("Setup cancelled.")) {
		return fmt.Errorf("setup was not cancelled:\n%s", s.output.String())
	}
	return nil
}

func (s *setupContext) theSetupShouldFailWith(message string) error {
	if s.err == nil || !bytes.Contains([]byte(s.err.Error()), []byte(message)) {
		return fmt.Errorf("error = %v, want containing %q", s.err, message)
	}
	return nil
}

func (s *setupContext) theExistingConfigShouldBeUnchanged() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return err
	}
	if string(data) != s.originalContent {
		return fmt.Errorf("config file was modified")
	}
	return nil
}
