package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wsusd/wsusd/internal/config"
	"github.com/wsusd/wsusd/pkg/api"
)

var adminServerURL string

func init() {
	approveCmd.PersistentFlags().StringVar(&adminServerURL, "server", "", "admin API base URL (default derived from config listen_addr)")
	unapproveCmd.PersistentFlags().StringVar(&adminServerURL, "server", "", "admin API base URL (default derived from config listen_addr)")
	listApprovalsCmd.PersistentFlags().StringVar(&adminServerURL, "server", "", "admin API base URL (default derived from config listen_addr)")
	catalogCmd.PersistentFlags().StringVar(&adminServerURL, "server", "", "admin API base URL (default derived from config listen_addr)")

	catalogCmd.AddCommand(catalogReloadCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the running server's catalog",
}

var catalogReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the catalog from the configured metadata source",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		if err := client.ReloadCatalog(); err != nil {
			return fmt.Errorf("reload catalog: %w", err)
		}
		fmt.Println("catalog reloaded")
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <software|driver> <id> <revision>",
	Short: "Approve an update revision",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApprovalChange(args, func(c *api.Client, kind api.Kind, id string, rev int32) error {
			return c.Approve(kind, id, rev)
		}, "approved")
	},
}

var unapproveCmd = &cobra.Command{
	Use:   "unapprove <software|driver> <id> <revision>",
	Short: "Unapprove an update revision",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApprovalChange(args, func(c *api.Client, kind api.Kind, id string, rev int32) error {
			return c.Unapprove(kind, id, rev)
		}, "unapproved")
	},
}

var listApprovalsCmd = &cobra.Command{
	Use:   "list-approvals <software|driver>",
	Short: "List approved revisions in a set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		approved, err := client.ListApprovals(kind)
		if err != nil {
			return fmt.Errorf("list approvals: %w", err)
		}
		for _, id := range approved {
			fmt.Println(id)
		}
		return nil
	},
}

func runApprovalChange(args []string, apply func(*api.Client, api.Kind, string, int32) error, verb string) error {
	kind, err := parseKind(args[0])
	if err != nil {
		return err
	}
	rev, err := strconv.ParseInt(args[2], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid revision %q: %w", args[2], err)
	}
	client, err := newAdminClient()
	if err != nil {
		return err
	}
	if err := apply(client, kind, args[1], int32(rev)); err != nil {
		return err
	}
	fmt.Printf("%s %s %s/%d\n", kind, verb, args[1], rev)
	return nil
}

func parseKind(s string) (api.Kind, error) {
	switch strings.ToLower(s) {
	case "software":
		return api.KindSoftware, nil
	case "driver":
		return api.KindDriver, nil
	default:
		return "", fmt.Errorf("unknown approval set %q (want software or driver)", s)
	}
}

func newAdminClient() (*api.Client, error) {
	baseURL := adminServerURL
	authToken := os.Getenv("WSUSD_ADMIN_TOKEN")

	if baseURL == "" || authToken == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if baseURL == "" {
			baseURL = deriveBaseURL(cfg)
		}
		if authToken == "" {
			authToken = cfg.Admin.EnabledAuthToken
		}
	}

	if authToken == "" {
		return nil, fmt.Errorf("no admin auth token configured (set admin.enabled_auth_token or WSUSD_ADMIN_TOKEN)")
	}

	return api.NewClient(baseURL, authToken), nil
}

func deriveBaseURL(cfg *config.Config) string {
	scheme := "http"
	if cfg.TLSCertFile != "" {
		scheme = "https"
	}
	addr := cfg.ListenAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return scheme + "://" + addr
}
