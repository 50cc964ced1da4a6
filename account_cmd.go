package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/readaloud/ttsengine/internal/account"
	"github.com/readaloud/ttsengine/internal/settings"
)

var (
	buyWait     bool
	loginRelay  bool
	loginLogout bool
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show your premium voice balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := newStore()
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		ctx := cmd.Context()
		token, err := settings.NewIdentity(store).AuthToken(ctx)
		if err != nil {
			return err
		}
		if token == "" {
			return fmt.Errorf("%w: run %s", account.ErrNotLoggedIn, keyword("readaloud login TOKEN"))
		}

		info, err := account.New(viper.GetString("service_url"), nil).GetAccount(ctx, token)
		if err != nil {
			return err
		}
		if info == nil {
			return errors.New("no account for this token, log in again")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Balance: %s\n", keyword(humanize.Commaf(info.Balance)))
		if info.FreeBalance > 0 {
			fmt.Fprintf(out, "  of which free: %s\n", humanize.Commaf(info.FreeBalance))
		}
		if info.PendingPurchase != "" {
			fmt.Fprintf(out, "Pending purchase: %s\n", info.PendingPurchase)
		}
		return nil
	},
}

var buyCmd = &cobra.Command{
	Use:     "buy [QTY]",
	Short:   "Buy premium voice credit",
	Long:    paragraph(fmt.Sprintf("\n%s a checkout session and print the payment link. With --wait, poll until the purchase is credited.", keyword("Create"))),
	Example: paragraph("readaloud buy\nreadaloud buy 3 --wait"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("quantity must be a positive number, got %q", args[0])
			}
			qty = n
		}

		store, err := newStore()
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		ctx := cmd.Context()
		token, err := settings.NewIdentity(store).AuthToken(ctx)
		if err != nil {
			return err
		}
		client := account.New(viper.GetString("service_url"), nil)

		id, err := client.CreateCheckoutSession(ctx, token, qty)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Complete your purchase at:")
		fmt.Fprintln(out, keyword(account.CheckoutBaseURL+id))
		if !buyWait {
			return nil
		}

		fmt.Fprintln(out, faint("Waiting for the purchase to be credited..."))
		info, err := client.WaitForPurchase(ctx, token, account.DefaultPollInterval, account.DefaultPollAttempts)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Balance: %s\n", keyword(humanize.Commaf(info.Balance)))
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:     "login [TOKEN]",
	Short:   "Store your account or relay token",
	Example: paragraph("readaloud login 7f3c...\nreadaloud login --relay ya29...\nreadaloud login --logout"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !loginLogout && len(args) == 0 {
			return errors.New("pass a token, or --logout")
		}
		token := ""
		if len(args) == 1 && !loginLogout {
			token = args[0]
		}

		store, err := newStore()
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		id := settings.NewIdentity(store)
		if loginRelay {
			err = id.SetRelayToken(token)
		} else {
			err = id.SetAuthToken(token)
		}
		if err != nil {
			return fmt.Errorf("unable to save token: %w", err)
		}

		switch {
		case token == "":
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		case loginRelay:
			fmt.Fprintln(cmd.OutOrStdout(), "Saved relay token for Google voices.")
		default:
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
		}
		return nil
	},
}

func init() {
	buyCmd.Flags().BoolVarP(&buyWait, "wait", "w", false, "wait until the purchase is credited")
	loginCmd.Flags().BoolVar(&loginRelay, "relay", false, "store a Google relay token instead of the account token")
	loginCmd.Flags().BoolVar(&loginLogout, "logout", false, "remove the stored token")
}
