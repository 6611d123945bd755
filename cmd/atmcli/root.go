package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/SamiulxHasanx07/atm-management-system/internal/config"
	"github.com/SamiulxHasanx07/atm-management-system/internal/database"
	"github.com/SamiulxHasanx07/atm-management-system/internal/security"
	"github.com/SamiulxHasanx07/atm-management-system/internal/services"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// GlobalFlags are shared by every subcommand.
type GlobalFlags struct {
	EnvFile string
	Driver  string
}

var (
	globalFlags GlobalFlags

	atmConfig *config.ATMConfig
	codec     security.PINCodec
	ledger    services.AccountLedger
	db        *sql.DB
)

var rootCmd = &cobra.Command{
	Use:   "atmcli",
	Short: "Bangla Bank ATM terminal simulator",
	Long: `atmcli drives the ATM session machine from a terminal.

Examples:
  atmcli create-account --name "Rahim Uddin" --phone 01712345678 ...
  atmcli run --driver memory --demo`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.Init(globalFlags.EnvFile)
		if globalFlags.Driver != "" {
			viper.Set("ledger.driver", globalFlags.Driver)
		}
		atmConfig = config.LoadATMConfig()

		c, err := security.NewArgon2Codec(security.LoadConfig())
		if err != nil {
			return fmt.Errorf("PIN codec: %w", err)
		}
		codec = c

		switch driver := viper.GetString("ledger.driver"); driver {
		case "memory":
			ledger = services.NewMemoryLedger(atmConfig, codec)
		case "postgres":
			conn, err := database.InitDB()
			if err != nil {
				return err
			}
			if err := database.Migrate(cmd.Context(), conn); err != nil {
				conn.Close()
				return err
			}
			db = conn
			ledger = services.NewPostgresLedger(db, atmConfig, codec)
		default:
			return fmt.Errorf("unknown ledger driver %q", driver)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if db != nil {
			return db.Close()
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.EnvFile, "env-file", ".env", "configuration file")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Driver, "driver", "", "ledger driver: memory|postgres (overrides LEDGER_DRIVER)")

	rootCmd.AddCommand(createAccountCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	Execute()
}
