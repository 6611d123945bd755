package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/SamiulxHasanx07/atm-management-system/internal/services"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const cliTerminalID = "cli"

var runDemo bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Operate the ATM keypad interactively",
	Long: `Reads keypad tokens from standard input, one or more per line:

  0-9 digits   typed into the buffer (e.g. 1234)
  ok           confirm the buffer
  clear        empty the buffer
  L1..L4 R1..R4  side buttons
  quit         leave the simulator`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runDemo {
			account, err := ledger.Create(cmd.Context(), services.CreateAccountRequest{
				Name:           "Demo Customer",
				PhoneNumber:    "01700000000",
				InitialDeposit: decimal.NewFromInt(5000),
				Email:          "demo@banglabank.test",
				Gender:         "Other",
				Profession:     "Tester",
				NID:            "1990123456789",
				Address:        "Dhaka",
			})
			if err != nil {
				return fmt.Errorf("demo account: %w", err)
			}
			printAccount(cmd, account)
		}

		controller := services.NewSessionController(ledger, codec, atmConfig)
		terminal := services.NewTerminalService(controller, services.NewMemorySessionStore())
		return keypadLoop(cmd, terminal, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func keypadLoop(cmd *cobra.Command, terminal *services.TerminalService, in io.Reader, out io.Writer) error {
	screen, err := terminal.Screen(cmd.Context(), cliTerminalID)
	if err != nil {
		return err
	}
	printScreen(out, screen)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		events, quit, err := parseKeypadLine(scanner.Text())
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		for _, ev := range events {
			screen, err = terminal.Handle(cmd.Context(), cliTerminalID, ev)
			if err != nil {
				return err
			}
		}
		if len(events) > 0 {
			printScreen(out, screen)
		}
		if quit {
			fmt.Fprintln(out, "Goodbye.")
			return nil
		}
	}
}

// parseKeypadLine turns one line of tokens into input events.
func parseKeypadLine(line string) ([]services.InputEvent, bool, error) {
	var events []services.InputEvent
	for _, tok := range strings.Fields(line) {
		switch lower := strings.ToLower(tok); {
		case lower == "quit" || lower == "exit":
			return events, true, nil
		case lower == "ok":
			events = append(events, services.Confirm())
		case lower == "clear":
			events = append(events, services.Clear())
		case isDigits(tok):
			events = append(events, services.Digits(tok)...)
		default:
			ev, err := services.ParseInputEvent(string(services.InputOption), tok)
			if err != nil {
				return nil, false, fmt.Errorf("unknown key %q", tok)
			}
			events = append(events, ev)
		}
	}
	return events, false, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func printScreen(out io.Writer, screen services.Output) {
	fmt.Fprintf(out, "\n[%s] %s\n", screen.Mode, screen.Message)
	if screen.Display != "" {
		fmt.Fprintf(out, "  input: %s\n", screen.Display)
	}

	codes := make([]string, 0, len(screen.Options))
	for code := range screen.Options {
		codes = append(codes, string(code))
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Fprintf(out, "  %s  %s\n", code, screen.Options[services.OptionCode(code)])
	}
}

func init() {
	runCmd.Flags().BoolVar(&runDemo, "demo", false, "open a demo account before starting")
}
