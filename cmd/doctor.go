package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"runtime"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/threadclaw/internal/config"
	"github.com/nextlevelbuilder/threadclaw/internal/store/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("threadclaw doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Roster:")
	fmt.Printf("    %-10s %d\n", "Agents:", len(cfg.Agents))
	fmt.Printf("    %-10s %d\n", "Rooms:", len(cfg.Rooms))
	if len(cfg.Agents) == 0 {
		fmt.Println("    WARNING: no agents configured, the gateway will refuse to start")
	}

	fmt.Println()
	fmt.Println("  Channels:")
	if cfg.Channels.Discord.Enabled {
		fmt.Printf("    %-10s enabled (token %s)\n", "Discord:", maskSecret(cfg.Channels.Discord.Token))
	} else {
		fmt.Printf("    %-10s disabled\n", "Discord:")
	}

	fmt.Println()
	fmt.Println("  Database:")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if cfg.IsManagedMode() {
		fmt.Printf("    %-10s managed (postgres)\n", "Mode:")
		db, dbErr := sql.Open("pgx", cfg.Database.PostgresDSN)
		if dbErr != nil {
			fmt.Printf("    %-10s CONNECT FAILED (%s)\n", "Status:", dbErr)
		} else if pingErr := db.PingContext(ctx); pingErr != nil {
			fmt.Printf("    %-10s CONNECT FAILED (%s)\n", "Status:", pingErr)
			db.Close()
		} else {
			defer db.Close()
			fmt.Printf("    %-10s OK\n", "Status:")
			var version int
			var dirty bool
			row := db.QueryRowContext(ctx, "SELECT version, dirty FROM schema_migrations LIMIT 1")
			if scanErr := row.Scan(&version, &dirty); scanErr != nil {
				fmt.Printf("    %-10s NOT MIGRATED (run: threadclaw migrate up)\n", "Schema:")
			} else if dirty {
				fmt.Printf("    %-10s v%d (DIRTY, run: threadclaw migrate force %d)\n", "Schema:", version, version-1)
			} else {
				fmt.Printf("    %-10s v%d\n", "Schema:", version)
			}
		}
	} else {
		path := config.ExpandHome(cfg.Database.SQLitePath)
		fmt.Printf("    %-10s standalone (sqlite)\n", "Mode:")
		fmt.Printf("    %-10s %s\n", "Path:", path)
		db, dbErr := sqlite.Open(ctx, path)
		if dbErr != nil {
			fmt.Printf("    %-10s OPEN FAILED (%s)\n", "Status:", dbErr)
		} else {
			stores := db.Stores()
			if invites, listErr := stores.Invites.List(ctx); listErr != nil {
				fmt.Printf("    %-10s QUERY FAILED (%s)\n", "Status:", listErr)
			} else {
				fmt.Printf("    %-10s OK (%d invitations)\n", "Status:", len(invites))
			}
			stores.Close()
		}
	}

	fmt.Println()
	fmt.Println("  Collaborators:")
	if cfg.Routing.URL != "" {
		fmt.Printf("    %-10s %s\n", "Routing:", cfg.Routing.URL)
	} else {
		fmt.Printf("    %-10s disabled (empty threads decide none)\n", "Routing:")
	}
	if cfg.Executor.URL != "" {
		fmt.Printf("    %-10s %s\n", "Executor:", cfg.Executor.URL)
	} else {
		fmt.Printf("    %-10s echo (built-in)\n", "Executor:")
	}
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "set"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
