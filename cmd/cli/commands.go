package main

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type site struct {
	Site              string `json:"site"`
	HasAuthentication bool   `json:"has_authentication"`
	Status            string `json:"status"`
}

type statsRow struct {
	Track string `json:"track"`
	Up    uint64 `json:"uptime_counts"`
	Down  uint64 `json:"downtime_counts"`
}

var (
	authScheme string
	username   string
	password   string
	replace    bool
	groupName  string
	emails     []string
)

var addSiteCmd = &cobra.Command{
	Use:   "add-site <url>",
	Short: "Register a site, logging in once when --auth is given",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{"site": withScheme(args[0])}
		if authScheme != "" {
			if err := promptPassword(); err != nil {
				return err
			}
			body["auth_scheme"] = authScheme
			body["auth_data"] = map[string]string{"username": username, "password": password}
		}
		var out site
		if err := client().post(cmd.Context(), "/api/sites", body, &out); err != nil {
			return err
		}
		fmt.Printf("Added %s (authenticated: %v)\n", out.Site, out.HasAuthentication)
		return nil
	},
}

var reauthCmd = &cobra.Command{
	Use:   "reauth <url>",
	Short: "Log in again and replace the stored credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if authScheme == "" {
			return fmt.Errorf("--auth is required")
		}
		if err := promptPassword(); err != nil {
			return err
		}
		body := map[string]any{
			"site":        withScheme(args[0]),
			"auth_scheme": authScheme,
			"auth_data":   map[string]string{"username": username, "password": password},
			"replace":     replace,
		}
		var out map[string]any
		if err := client().post(cmd.Context(), "/api/sites/credentials", body, &out); err != nil {
			return err
		}
		fmt.Printf("Credential for %v is now %v\n", out["site"], out["auth_scheme"])
		return nil
	},
}

var addGroupCmd = &cobra.Command{
	Use:   "add-group <url>",
	Short: "Bind a notification group to a site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{"name": groupName, "site": withScheme(args[0]), "emails": emails}
		if err := client().post(cmd.Context(), "/api/groups", body, nil); err != nil {
			return err
		}
		fmt.Printf("Group %s will be notified about %s\n", groupName, args[0])
		return nil
	},
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List registered sites",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out []site
		if err := client().get(cmd.Context(), "/api/sites", &out); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SITE\tSTATUS\tAUTH")
		for _, s := range out {
			fmt.Fprintf(w, "%s\t%s\t%v\n", s.Site, s.Status, s.HasAuthentication)
		}
		return w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats [url]",
	Short: "Show up/down counts for all sites or one site",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var rows []statsRow
		if len(args) == 1 {
			var one struct {
				Stats statsRow `json:"stats"`
			}
			if err := client().get(cmd.Context(), "/api/sites/"+url.PathEscape(withScheme(args[0])), &one); err != nil {
				return err
			}
			rows = append(rows, one.Stats)
		} else if err := client().get(cmd.Context(), "/api/historical-stats", &rows); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SITE\tUP\tDOWN")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%d\t%d\n", r.Track, r.Up, r.Down)
		}
		return w.Flush()
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one sweep now and print its summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Message string `json:"message"`
		}
		if err := client().post(cmd.Context(), "/api/sweeps", nil, &out); err != nil {
			return err
		}
		fmt.Println(out.Message)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{addSiteCmd, reauthCmd} {
		c.Flags().StringVar(&authScheme, "auth", "", "auth scheme: session, token or bearer")
		c.Flags().StringVarP(&username, "user", "u", "", "login username")
		c.Flags().StringVarP(&password, "password", "p", "", "login password (prompted when empty)")
	}
	reauthCmd.Flags().BoolVar(&replace, "replace", false, "allow switching to a different auth scheme")

	addGroupCmd.Flags().StringVar(&groupName, "name", "", "group name")
	addGroupCmd.Flags().StringSliceVar(&emails, "email", nil, "subscriber email (repeatable or comma-separated)")
	_ = addGroupCmd.MarkFlagRequired("name")
	_ = addGroupCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(addSiteCmd, reauthCmd, addGroupCmd, sitesCmd, statsCmd, sweepCmd)
}

// withScheme lets "example.com" stand for "https://example.com".
func withScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return raw
}

func promptPassword() error {
	if username == "" {
		return fmt.Errorf("--user is required with --auth")
	}
	if password != "" {
		return nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read password: %w", err)
	}
	password = strings.TrimRight(line, "\r\n")
	return nil
}
