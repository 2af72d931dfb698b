package cmd

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/kbfw/internal/cache"
	"github.com/Norgate-AV/kbfw/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:          "cache",
	Short:        "Manage cached west workspaces",
	SilenceUsage: true,
}

var cacheListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List cached workspaces",
	RunE:         runCacheList,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

var cacheAddCmd = &cobra.Command{
	Use:   "add WORKSPACE",
	Short: "Cache an existing west workspace",
	Long: `Cache a west workspace that was set up outside kbfw. The repository and
branch are detected from the workspace checkout unless --repository is given.`,
	RunE:         runCacheAdd,
	SilenceUsage: true,
	Args:         cobra.ExactArgs(1),
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete REPOSITORY [BRANCH]",
	Short: "Delete cached workspaces",
	Long: `Delete the cached workspaces of a repository. Without a branch every tier of
the repository is removed. The repository "unknown" removes directories that
have no metadata record.`,
	RunE:         runCacheDelete,
	SilenceUsage: true,
	Args:         cobra.RangeArgs(1, 2),
}

var cacheCleanupCmd = &cobra.Command{
	Use:          "cleanup",
	Short:        "Delete cached workspaces older than --max-age hours",
	RunE:         runCacheCleanup,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func init() {
	cacheAddCmd.Flags().String("repository", "", "Repository to record instead of the detected one")
	cacheAddCmd.Flags().Bool("force", false, "Replace an existing entry")
	cacheCleanupCmd.Flags().Int("max-age", 168, "Maximum entry age in hours")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheAddCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
}

// withCache loads the config, opens the cache and runs fn against it.
func withCache(cmd *cobra.Command, fn func(cmd *cobra.Command, m *cache.Manager) error) error {
	cfg, err := config.NewLoader().LoadForCommand(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, done, err := startSession(cmd, cfg)
	if err != nil {
		return err
	}
	defer done()

	m, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	cmd.SetContext(ctx)

	return fn(cmd, m)
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	return withCache(cmd, func(cmd *cobra.Command, m *cache.Manager) error {
		entries, err := m.ListCachedWorkspaces(cmd.Context())
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()

		if len(entries) == 0 {
			fmt.Fprintf(w, "No cached workspaces in %s\n", m.Root())
			return nil
		}

		now := time.Now()
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "REPOSITORY\tBRANCH\tTIER\tAGE\tSIZE\tPATH")

		for _, e := range entries {
			branch := e.Branch
			if branch == "" {
				branch = "-"
			}

			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Repository, branch, e.Tier, formatAge(e.Age(now)), formatSize(e.SizeBytes), e.WorkspacePath)
		}

		if err := tw.Flush(); err != nil {
			return err
		}

		count, size, err := m.Stats(cmd.Context())
		if err == nil {
			fmt.Fprintf(w, "\n%d entries, %s on disk\n", count, formatSize(size))
		}

		return nil
	})
}

func runCacheAdd(cmd *cobra.Command, args []string) error {
	source, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	repository, _ := cmd.Flags().GetString("repository")
	force, _ := cmd.Flags().GetBool("force")

	return withCache(cmd, func(cmd *cobra.Command, m *cache.Manager) error {
		res, err := m.AddExternalWorkspace(cmd.Context(), source, repository, force)
		if err != nil {
			return err
		}

		for _, meta := range res.Metadata {
			fmt.Fprintf(cmd.OutOrStdout(), "Cached %s (%s) as %s\n", meta.Repository, meta.Tier, meta.CacheKey)
		}

		return nil
	})
}

func runCacheDelete(cmd *cobra.Command, args []string) error {
	repository := args[0]

	var branch string
	if len(args) > 1 {
		branch = args[1]
	}

	return withCache(cmd, func(cmd *cobra.Command, m *cache.Manager) error {
		removed, err := m.DeleteCachedWorkspace(cmd.Context(), repository, branch)
		if err != nil {
			return err
		}

		if !removed {
			fmt.Fprintf(cmd.OutOrStdout(), "No cached workspace for %s\n", repository)
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted cached workspace for %s\n", repository)
		return nil
	})
}

func runCacheCleanup(cmd *cobra.Command, _ []string) error {
	maxAge, _ := cmd.Flags().GetInt("max-age")
	if maxAge < 0 {
		return fmt.Errorf("max-age must not be negative")
	}

	return withCache(cmd, func(cmd *cobra.Command, m *cache.Manager) error {
		removed, err := m.CleanupStaleEntries(cmd.Context(), maxAge)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale entries\n", removed)
		return nil
	})
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
