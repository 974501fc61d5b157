package cmd

import (
	"fmt"
	"os"
	"strings"

	"tourney-media/infrastructure/config"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

// Prompter interface for interactive prompts (allows mocking in tests)
type Prompter interface {
	Input(message string, defaultValue string) (string, error)
	Password(message string) (string, error)
	Select(message string, options []string, defaultValue string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
}

// SurveyPrompter implements Prompter using the survey library
type SurveyPrompter struct{}

func (p *SurveyPrompter) Input(message string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Password(message string) (string, error) {
	result := ""
	if err := survey.AskOne(&survey.Password{Message: message}, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Select(message string, options []string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Select{
		Message: message,
		Options: options,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

// DefaultPrompter is the prompter used in production
var DefaultPrompter Prompter = &SurveyPrompter{}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create configuration file interactively",
	Long: `Prompts for configuration values and creates config.yaml.

This command guides you through connecting to OBS, choosing a cutter and
output directory, and pointing at your YouTube OAuth client credentials.
Everything else keeps its default and can be changed later with
'tourney-media config set'.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = "config/config.yaml"
	}
	return RunSetupWithPrompter(DefaultPrompter, path, os.Stdout)
}

// RunSetupWithPrompter runs the setup with a given prompter (for testing)
func RunSetupWithPrompter(prompter Prompter, configPath string, out OutputWriter) error {
	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		overwrite, err := prompter.Confirm("config.yaml already exists. Overwrite?", false)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !overwrite {
			fmt.Fprintln(out, "Setup cancelled.")
			return nil
		}
	}

	fmt.Fprintln(out, "Welcome to tourney-media setup!")
	fmt.Fprintln(out)

	cfg := config.Defaults()

	if err := promptOBS(prompter, cfg); err != nil {
		return err
	}
	if err := promptCutting(prompter, cfg); err != nil {
		return err
	}
	if err := promptYouTube(prompter, cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Configuration saved to %s\n", configPath)
	return nil
}

func promptOBS(prompter Prompter, cfg *config.Config) error {
	protocol, err := prompter.Select("Which obs-websocket version does OBS run?",
		[]string{"v5", "v4"}, cfg.OBS.Protocol)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.OBS.Protocol = protocol

	defaultAddress := cfg.OBS.Address
	if protocol == "v4" {
		defaultAddress = "ws://127.0.0.1:4444"
	}
	address, err := prompter.Input("obs-websocket address?", defaultAddress)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if address == "" {
		address = defaultAddress
	}
	if !strings.HasPrefix(address, "ws://") && !strings.HasPrefix(address, "wss://") {
		return fmt.Errorf("address must start with ws:// or wss://")
	}
	cfg.OBS.Address = address

	password, err := prompter.Password("obs-websocket password (leave empty if disabled)?")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.OBS.Password = password

	return nil
}

func promptCutting(prompter Prompter, cfg *config.Config) error {
	output, err := prompter.Input("Where should cut clips go?", cfg.Paths.OutputDirectory)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if output != "" {
		cfg.Paths.OutputDirectory = output
	}

	tool, err := prompter.Select("Which tool should cut recordings?",
		[]string{"ffmpeg", "mkvmerge"}, cfg.Cutter.Tool)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Cutter.Tool = tool

	return nil
}

func promptYouTube(prompter Prompter, cfg *config.Config) error {
	upload, err := prompter.Confirm("Upload clips to YouTube?", true)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if !upload {
		return nil
	}

	credentials, err := prompter.Input("Path to OAuth client credentials file?", cfg.YouTube.CredentialsFile)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if credentials != "" {
		cfg.YouTube.CredentialsFile = credentials
	}

	privacy, err := prompter.Select("Privacy of uploaded videos?",
		[]string{"private", "unlisted", "public"}, cfg.YouTube.Privacy)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.YouTube.Privacy = privacy

	return nil
}
