package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sufield/junction/internal/adapters/logging"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Check and print the effective configuration",
	}
	cmd.AddCommand(newConfigValidateCommand(), newConfigShowCommand())
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Validate the configuration.

Loads --config together with JUNCTION_* overrides and reports the first
invalid setting by its key.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "configuration valid")
			fmt.Fprintf(out, "  directory: %s (%d participants, %s store)\n",
				cfg.Directory.Address, cfg.Directory.Participants, cfg.Directory.Store)
			fmt.Fprintf(out, "  barrier:   %s (%d participants)\n",
				cfg.Barrier.Address, cfg.Barrier.Participants)
			if cfg.Node.Distributed {
				fmt.Fprintf(out, "  node:      distributed, gateway %s, advertised as %s\n",
					cfg.Node.GatewayAddress, cfg.Node.Advertise())
			}
			return nil
		},
	}
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print the effective configuration as YAML.

Secrets such as the Redis password are masked.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, err := newLoader(cmd)
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString(flagConfig)
			if _, err := loader.Load(path); err != nil {
				return fmt.Errorf("%w: %w", ErrConfig, err)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			root := printable(loader.Settings())
			if err := enc.Encode(&root); err != nil {
				return fmt.Errorf("%w: encode configuration: %v", ErrInternal, err)
			}
			return enc.Close()
		},
	}
}

// printable masks sensitive values and renders durations the way they are
// written in a configuration file.
func printable(settings map[string]any) yaml.Node {
	var node yaml.Node
	node.Kind = yaml.MappingNode

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := yaml.Node{Kind: yaml.ScalarNode, Value: k}
		var value yaml.Node
		switch v := settings[k].(type) {
		case map[string]any:
			value = printable(v)
		case time.Duration:
			value = yaml.Node{Kind: yaml.ScalarNode, Value: v.String()}
		default:
			if s, ok := v.(string); ok && s != "" && logging.IsSensitiveField(k) {
				v = logging.RedactedValue
			}
			if err := value.Encode(v); err != nil {
				value = yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprint(v)}
			}
		}
		node.Content = append(node.Content, &key, &value)
	}
	return node
}
