package main

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"linebridge/internal/config"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your linebridge installation",
		Long: `Verifies that linebridge's configuration, allow-list, and vendor
endpoints are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("linebridge doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'linebridge init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates (secrets set, tokens expanded)
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Allow-list parseable
			if users, err := config.LoadAllowList(cfg.General.AllowListPath, logger); err != nil {
				printFail("Allow-list", err.Error())
				failed++
			} else {
				printPass("Allow-list", fmt.Sprintf("%d entries (%s)", len(users), cfg.General.AllowListPath))
				passed++
			}

			// 4. Discord webhook URL well-formed
			if u, err := url.Parse(cfg.Discord.WebhookURL); err != nil || u.Scheme != "https" || u.Host == "" {
				printFail("Discord webhook URL", "not a valid https URL")
				failed++
			} else {
				printPass("Discord webhook URL", u.Host)
				passed++
			}

			// 5. LINE API reachable
			if err := checkReachable("api.line.me:443"); err != nil {
				printWarn("LINE API", fmt.Sprintf("unreachable: %v", err))
				warned++
			} else {
				printPass("LINE API", "api.line.me reachable")
				passed++
			}

			// 6. LINE data API reachable
			if err := checkReachable("api-data.line.me:443"); err != nil {
				printWarn("LINE data API", fmt.Sprintf("unreachable: %v", err))
				warned++
			} else {
				printPass("LINE data API", "api-data.line.me reachable")
				passed++
			}

			fmt.Printf("\n%d passed, %d failed, %d warnings\n", passed, failed, warned)
			return nil
		},
	}
}

func checkReachable(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return err
	}
	return conn.Close()
}

func printPass(name, detail string) {
	fmt.Printf("  ✅ %-24s %s\n", name, detail)
}

func printFail(name, detail string) {
	fmt.Printf("  ❌ %-24s %s\n", name, detail)
}

func printWarn(name, detail string) {
	fmt.Printf("  ⚠️  %-24s %s\n", name, detail)
}
