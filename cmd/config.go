package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"tourney-media/infrastructure/config"

	"github.com/spf13/cobra"
)

// DefaultOutput is the default output writer for config commands
var DefaultOutput OutputWriter = os.Stdout

// secretKeys are masked by "config list"
var secretKeys = map[string]bool{
	"obs.password": true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and change configuration settings",
	Long: `Read and change individual settings in the configuration file using
dotted keys.

Values are parsed as YAML: durations are written as "500ms" or "1m", lists
as "[melee, weekly]".

Examples:
  tourney-media config list
  tourney-media config get obs.address
  tourney-media config set obs.protocol v4
  tourney-media config set youtube.tags "[melee, weekly]"`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		return RunConfigGetWithDependencies(cfg, cfgFile, args[0], DefaultOutput)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting and save the file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		return RunConfigSetWithDependencies(cfg, cfgFile, args[0], args[1], DefaultOutput)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every setting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		return RunConfigListWithDependencies(cfg, cfgFile, DefaultOutput)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
}

// RunConfigGetWithDependencies runs the get command with injected dependencies
func RunConfigGetWithDependencies(cfg *config.Config, configPath, key string, out OutputWriter) error {
	value, err := config.NewConfigManager(cfg, configPath).Get(key)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, value)
	return nil
}

// RunConfigSetWithDependencies runs the set command with injected dependencies
func RunConfigSetWithDependencies(cfg *config.Config, configPath, key, value string, out OutputWriter) error {
	mgr := config.NewConfigManager(cfg, configPath)
	if err := mgr.Set(key, value); err != nil {
		return err
	}

	saved, err := mgr.Get(key)
	if err != nil {
		return err
	}
	if secretKeys[key] {
		saved = mask(saved)
	}
	fmt.Fprintf(out, "Set %s = %s\n", key, saved)
	return nil
}

// RunConfigListWithDependencies runs the list command with injected dependencies
func RunConfigListWithDependencies(cfg *config.Config, configPath string, out OutputWriter) error {
	settings, err := config.NewConfigManager(cfg, configPath).List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, s := range settings {
		value := s.Value
		if secretKeys[s.Key] {
			value = mask(value)
		}
		fmt.Fprintf(w, "%s\t%s\n", s.Key, value)
	}
	return w.Flush()
}

func mask(value string) string {
	if value == "" {
		return ""
	}
	return "********"
}
