package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/residency-backend/pkg/apiclient"
	"github.com/angelmondragon/residency-backend/pkg/auth"
	"github.com/angelmondragon/residency-backend/pkg/config"
)

func tokenCommand() *cobra.Command {
	var payload auth.DevTokenPayload
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a dev identity token (requires RESIDENCY_DEV_TOKEN_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadIdentity()
			if err != nil {
				return err
			}
			if ttl > 0 {
				cfg.DevTokenTTL = int(ttl.Minutes())
			}
			token, err := auth.MintDevToken(*cfg, time.Now().UTC(), payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&payload.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&payload.DisplayName, "name", "", "display name")
	cmd.Flags().DurationVar(&ttl, "expires-in", 0, "token lifetime (e.g. 30m, 2h)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func gateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "gate <route>",
		Short: "Ask whether the current identity may open a dashboard route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			res, err := c.Gate(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func profileCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the signed-in user, role and reachable routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			if _, err := c.Register(cmd.Context()); err != nil {
				return explain(err)
			}
			res, err := c.Profile(cmd.Context())
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func apartmentsCommand(flags *globalFlags) *cobra.Command {
	var filter apiclient.ApartmentFilter
	cmd := &cobra.Command{
		Use:   "apartments",
		Short: "List apartments",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			res, err := c.Apartments(cmd.Context(), filter)
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&filter.MinRent, "min-rent", "", "minimum rent")
	cmd.Flags().StringVar(&filter.MaxRent, "max-rent", "", "maximum rent")
	cmd.Flags().BoolVar(&filter.AvailableOnly, "available", false, "only available apartments")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "page size")
	return cmd
}

func agreementsCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agreements",
		Short: "Request, list and decide agreements",
	}

	var requestKey string
	request := &cobra.Command{
		Use:   "request <apartment-id>",
		Short: "Request an agreement for an apartment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apartmentID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid apartment id: %w", err)
			}
			c, err := flags.client()
			if err != nil {
				return err
			}
			res, err := c.SubmitAgreement(cmd.Context(), apartmentID, requestKey)
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	request.Flags().StringVar(&requestKey, "idempotency-key", "", "reuse a key to replay a previous attempt")

	mine := &cobra.Command{
		Use:   "mine",
		Short: "List your agreements",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			res, err := c.MyAgreements(cmd.Context())
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	var status string
	pending := &cobra.Command{
		Use:   "requests",
		Short: "List agreement requests (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			res, err := c.AgreementRequests(cmd.Context(), status)
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	pending.Flags().StringVar(&status, "status", "", "pending, accepted, rejected or all")

	var decideKey string
	var reject bool
	decide := &cobra.Command{
		Use:   "decide <agreement-id>",
		Short: "Accept (default) or reject a pending request (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agreementID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid agreement id: %w", err)
			}
			c, err := flags.client()
			if err != nil {
				return err
			}
			res, err := c.DecideAgreement(cmd.Context(), agreementID, !reject, decideKey)
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	decide.Flags().BoolVar(&reject, "reject", false, "reject instead of accept")
	decide.Flags().StringVar(&decideKey, "idempotency-key", "", "reuse a key to replay a previous attempt")

	cmd.AddCommand(request, mine, pending, decide)
	return cmd
}

func couponsCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coupons",
		Short: "List or create coupons",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			res, err := c.AvailableCoupons(cmd.Context())
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	var discount int
	var description string
	create := &cobra.Command{
		Use:   "create <code>",
		Short: "Create a coupon (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			res, err := c.CreateCoupon(cmd.Context(), args[0], discount, description)
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	create.Flags().IntVar(&discount, "discount", 0, "discount percent (0-100)")
	create.Flags().StringVar(&description, "description", "", "coupon description")

	cmd.AddCommand(create)
	return cmd
}

func paymentsCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Start rent payments and list payment history",
	}

	var month, couponCode string
	start := &cobra.Command{
		Use:   "start",
		Short: "Open a payment session, optionally apply a coupon, and create the card intent",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			session, err := c.StartPayment(cmd.Context(), month)
			if err != nil {
				return explain(err)
			}
			if couponCode != "" {
				outcome, err := c.ApplyCoupon(cmd.Context(), session.ID, couponCode)
				if err != nil {
					return explain(err)
				}
				session = outcome.Session
			}
			intent, err := c.CreateIntent(cmd.Context(), session.ID, "")
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"session": session, "intent": intent})
		},
	}
	start.Flags().StringVar(&month, "month", time.Now().UTC().Format("2006-01"), "billing month (YYYY-MM)")
	start.Flags().StringVar(&couponCode, "coupon", "", "coupon code to apply")

	var confirmKey string
	confirm := &cobra.Command{
		Use:   "confirm <session-id> <payment-intent-id>",
		Short: "Record a payment after the card was charged",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			res, err := c.ConfirmPayment(cmd.Context(), args[0], args[1], confirmKey)
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	confirm.Flags().StringVar(&confirmKey, "idempotency-key", "", "reuse a key to replay a previous attempt")

	var historyMonth string
	history := &cobra.Command{
		Use:   "history",
		Short: "List your payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			res, err := c.PaymentHistory(cmd.Context(), historyMonth)
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	history.Flags().StringVar(&historyMonth, "month", "", "filter by month (YYYY-MM)")

	cmd.AddCommand(start, confirm, history)
	return cmd
}
