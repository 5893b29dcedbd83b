package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	famgate "github.com/famgate/famgate"
	"github.com/famgate/famgate/internal/config"
)

var (
	apiFlag    string
	familyFlag string
	rootCmd    = &cobra.Command{
		Use:   "famgatectl",
		Short: "CLI client for the famgate backend",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8790", "Document API base URL (emulator or hosted)")
	rootCmd.PersistentFlags().StringVarP(&familyFlag, "family", "f", "", "Family ID")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newClient builds an SDK client against --api, letting FAMGATE_* variables
// fill the rest.
func newClient() (*famgate.Client, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	if apiFlag != "" {
		cfg.BackendURL = apiFlag
		cfg.StoreDriver = "rest"
	}
	return famgate.NewWithConfig(cfg)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(os.Stdout, string(data))
	return nil
}
