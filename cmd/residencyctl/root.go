package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/residency-backend/pkg/apiclient"
	"github.com/angelmondragon/residency-backend/pkg/config"
)

type globalFlags struct {
	baseURL string
	token   string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "residencyctl",
		Short:         "Residency API command line client",
		Long:          "Operates the residency API: gate checks, agreement requests, coupons and rent payments.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "API base URL (defaults to RESIDENCY_CLIENT_BASE_URL)")
	root.PersistentFlags().StringVar(&flags.token, "token", "", "bearer token (defaults to RESIDENCY_CLIENT_TOKEN)")

	root.AddCommand(
		tokenCommand(),
		gateCommand(flags),
		profileCommand(flags),
		apartmentsCommand(flags),
		agreementsCommand(flags),
		couponsCommand(flags),
		paymentsCommand(flags),
	)
	return root
}

func (f *globalFlags) client() (*apiclient.Client, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	if f.baseURL != "" {
		cfg.BaseURL = f.baseURL
	}
	if f.token != "" {
		cfg.Token = f.token
	}
	return apiclient.New(*cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// explain turns a forced sign-out into an actionable message.
func explain(err error) error {
	if errors.Is(err, apiclient.ErrSessionEnded) {
		return fmt.Errorf("%w (mint a new token with `residencyctl token`)", err)
	}
	return err
}
