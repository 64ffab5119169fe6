// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/geo-enrich/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the layered Hot/Warm/Cold cache tier",
	Long: `Cache exposes operational tooling for the cache tier: connectivity
and key-count stats, Redis pattern invalidation, cold-bundle cleanup by age,
and a polling monitor. Destructive operations default to --dry-run.`,
	RunE: runCache,
}

func init() {
	cacheCmd.Flags().Bool("stats", false, "print hot-tier reachability and key count")
	cacheCmd.Flags().Bool("health-check", false, "exit 1 if the hot tier is unreachable")
	cacheCmd.Flags().Bool("clear-redis", false, "delete hot-tier keys matching --pattern")
	cacheCmd.Flags().String("pattern", "*", "key pattern for --clear-redis")
	cacheCmd.Flags().Bool("clear-soft", false, "delete cold-tier bundles older than --max-age-days")
	cacheCmd.Flags().Int("max-age-days", 90, "age threshold in days for --clear-soft")
	cacheCmd.Flags().Bool("monitor", false, "poll --stats every --interval seconds until interrupted")
	cacheCmd.Flags().Int("interval", 30, "polling interval in seconds for --monitor")
	cacheCmd.Flags().Bool("dry-run", true, "report what a destructive operation would do without doing it")
	cacheCmd.Flags().Bool("execute", false, "perform the destructive operation instead of a dry run")

	rootCmd.AddCommand(cacheCmd)
}

// cacheCLIError is returned for a validation failure (exit 1), as opposed to
// a fatal error (exit 2), per spec.md §6's cache CLI exit-code contract.
type cacheCLIError struct{ msg string }

func (e cacheCLIError) Error() string { return e.msg }

func runCache(cmd *cobra.Command, args []string) error {
	cfg := loadPipelineConfig()
	hot := cache.NewHot(cfg.Cache.RedisAddr, cfg.Cache.RedisPoolSize)
	defer hot.Close()
	coldMaxAge := cfg.Cache.ColdMaxAge
	if cmd.Flags().Changed("max-age-days") {
		days, _ := cmd.Flags().GetInt("max-age-days")
		coldMaxAge = time.Duration(days) * 24 * time.Hour
	}
	cold := cache.NewCold(cfg.Cache.WarmDir, coldMaxAge)

	execute, _ := cmd.Flags().GetBool("execute")
	dryRun := !execute

	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		s := hot.Ping(cmd.Context())
		fmt.Printf("hot tier: reachable=%v keys=%d\n", s.Reachable, s.KeyCount)
	}

	if healthCheck, _ := cmd.Flags().GetBool("health-check"); healthCheck {
		s := hot.Ping(cmd.Context())
		if !s.Reachable {
			return cacheCLIError{"hot tier unreachable"}
		}
		fmt.Println("hot tier reachable")
	}

	if clearRedis, _ := cmd.Flags().GetBool("clear-redis"); clearRedis {
		pattern, _ := cmd.Flags().GetString("pattern")
		if dryRun {
			fmt.Printf("dry run: would delete hot-tier keys matching %q (pass --execute to apply)\n", pattern)
		} else {
			n, err := hot.InvalidatePattern(cmd.Context(), pattern)
			if err != nil {
				fatalf(cmd, "clearing redis: %v", err)
			}
			fmt.Printf("deleted %d key(s) matching %q\n", n, pattern)
		}
	}

	if clearSoft, _ := cmd.Flags().GetBool("clear-soft"); clearSoft {
		n, err := cold.Cleanup(dryRun)
		if err != nil {
			fatalf(cmd, "cleaning cold tier: %v", err)
		}
		if dryRun {
			fmt.Printf("dry run: %d bundle(s) would be removed (pass --execute to apply)\n", n)
		} else {
			fmt.Printf("removed %d bundle(s)\n", n)
		}
	}

	if monitor, _ := cmd.Flags().GetBool("monitor"); monitor {
		interval, _ := cmd.Flags().GetInt("interval")
		runMonitor(cmd.Context(), hot, time.Duration(interval)*time.Second)
	}

	return nil
}

func runMonitor(ctx context.Context, hot *cache.Hot, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s := hot.Ping(ctx)
		fmt.Printf("[%s] reachable=%v keys=%d\n", time.Now().Format(time.RFC3339), s.Reachable, s.KeyCount)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func fatalf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}
