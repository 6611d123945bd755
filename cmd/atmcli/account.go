package main

import (
	"fmt"

	"github.com/SamiulxHasanx07/atm-management-system/internal/models"
	"github.com/SamiulxHasanx07/atm-management-system/internal/services"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var accountForm struct {
	name, phone, deposit, email  string
	gender, profession, national string
	nid, address                 string
}

var createAccountCmd = &cobra.Command{
	Use:   "create-account",
	Short: "Open an account and print its card number and PIN",
	RunE: func(cmd *cobra.Command, args []string) error {
		deposit, err := decimal.NewFromString(accountForm.deposit)
		if err != nil {
			return fmt.Errorf("initial deposit: %w", err)
		}

		account, err := ledger.Create(cmd.Context(), services.CreateAccountRequest{
			Name:           accountForm.name,
			PhoneNumber:    accountForm.phone,
			InitialDeposit: deposit,
			Email:          accountForm.email,
			Gender:         accountForm.gender,
			Profession:     accountForm.profession,
			Nationality:    accountForm.national,
			NID:            accountForm.nid,
			Address:        accountForm.address,
		})
		if err != nil {
			return err
		}

		printAccount(cmd, account)
		return nil
	},
}

func printAccount(cmd *cobra.Command, account *models.Account) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Account created successfully.")
	fmt.Fprintf(out, "  Account number: %s\n", account.AccountNumber)
	fmt.Fprintf(out, "  Card number:    %s\n", account.CardNumber)
	fmt.Fprintf(out, "  PIN:            %s  (shown once, keep it safe)\n", account.PIN)
	fmt.Fprintf(out, "  Balance:        %s\n", account.Balance.StringFixed(2))
}

func init() {
	f := createAccountCmd.Flags()
	f.StringVar(&accountForm.name, "name", "", "account holder name")
	f.StringVar(&accountForm.phone, "phone", "", "phone number (10-15 digits)")
	f.StringVar(&accountForm.deposit, "deposit", "500", "initial deposit")
	f.StringVar(&accountForm.email, "email", "", "email address")
	f.StringVar(&accountForm.gender, "gender", "", "gender")
	f.StringVar(&accountForm.profession, "profession", "", "profession")
	f.StringVar(&accountForm.national, "nationality", "", "nationality (default Bangladeshi)")
	f.StringVar(&accountForm.nid, "nid", "", "national ID number")
	f.StringVar(&accountForm.address, "address", "", "postal address")

	for _, name := range []string{"name", "phone", "email", "gender", "profession", "nid", "address"} {
		createAccountCmd.MarkFlagRequired(name)
	}
}
