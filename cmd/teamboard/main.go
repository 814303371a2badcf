package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	apiclient "github.com/saralaufeyson/leetcode-team-dashboard/pkg/api/client"
	"github.com/saralaufeyson/leetcode-team-dashboard/pkg/config"
)

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	Handle      string `json:"handle,omitempty"`
	AccessToken string `json:"access_token"`
}

var buildVersion = "dev"

const requestTimeout = 30 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "register":
		err = commandRegister(args)
	case "login":
		err = commandLogin(args)
	case "logout":
		err = commandLogout()
	case "members":
		err = commandMembers(args)
	case "leaderboard":
		err = commandLeaderboard(args)
	case "profile":
		err = commandProfile(args)
	case "stats":
		err = commandStats(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	handle := fs.String("handle", "", "Owner handle")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+apiclient.DefaultBaseURL+")")
	fs.Parse(args)

	if strings.TrimSpace(*handle) == "" {
		return errors.New("--handle is required")
	}
	secret, err := readSecret(*password, true)
	if err != nil {
		return err
	}

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Register(ctx, *handle, secret)
	if err != nil {
		return err
	}
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("registered %s (team %q)\n", resp.Owner.Handle, resp.Team.Name)
	fmt.Println("run 'teamboard login' to start a session")
	return nil
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	handle := fs.String("handle", "", "Owner handle")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+apiclient.DefaultBaseURL+")")
	fs.Parse(args)

	if strings.TrimSpace(*handle) == "" {
		return errors.New("--handle is required")
	}
	secret, err := readSecret(*password, false)
	if err != nil {
		return err
	}

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := client.Login(ctx, *handle, secret)
	if err != nil {
		return err
	}
	cfg.Handle = resp.Owner.Handle
	cfg.AccessToken = resp.Tokens.AccessToken
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", resp.Owner.Handle)
	return nil
}

func commandLogout() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Handle = ""
	cfg.AccessToken = ""
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func readSecret(flagValue string, confirm bool) (string, error) {
	if secret := strings.TrimSpace(flagValue); secret != "" {
		return secret, nil
	}
	secret, err := promptPassword("Password: ")
	if err != nil {
		return "", err
	}
	if confirm {
		again, err := promptPassword("Confirm password: ")
		if err != nil {
			return "", err
		}
		if again != secret {
			return "", errors.New("passwords do not match")
		}
	}
	if secret == "" {
		return "", errors.New("password must not be empty")
	}
	return secret, nil
}

func promptPassword(label string) (string, error) {
	fmt.Print(label)
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

// session returns an API client and the stored access token.
func session() (*apiclient.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, "", errors.New("please login first using 'teamboard login'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return nil, "", err
	}
	return client, token, nil
}

func commandMembers(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: teamboard members [list|add|remove]")
	}
	switch args[0] {
	case "list":
		return membersList(args[1:])
	case "add":
		return membersAdd(args[1:])
	case "remove":
		return membersRemove(args[1:])
	default:
		return fmt.Errorf("unknown members command: %s", args[0])
	}
}

func membersList(args []string) error {
	fs := flag.NewFlagSet("members list", flag.ExitOnError)
	fs.Parse(args)

	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	members, err := client.ListMembers(ctx, token)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		fmt.Println("no members yet; add one with 'teamboard members add'")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLEETCODE ID\tADDED")
	for _, m := range members {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.DisplayName, m.ExternalID, m.AddedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func membersAdd(args []string) error {
	fs := flag.NewFlagSet("members add", flag.ExitOnError)
	name := fs.String("name", "", "Display name")
	externalID := fs.String("id", "", "LeetCode username")
	fs.Parse(args)

	if strings.TrimSpace(*name) == "" {
		return errors.New("--name is required")
	}
	if strings.TrimSpace(*externalID) == "" {
		return errors.New("--id is required")
	}

	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	member, err := client.AddMember(ctx, token, *name, *externalID)
	if err != nil {
		return err
	}
	fmt.Printf("member added: %s (%s)\n", member.DisplayName, member.ExternalID)
	return nil
}

func membersRemove(args []string) error {
	fs := flag.NewFlagSet("members remove", flag.ExitOnError)
	externalID := fs.String("id", "", "LeetCode username")
	fs.Parse(args)

	if strings.TrimSpace(*externalID) == "" {
		return errors.New("--id is required")
	}

	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := client.RemoveMember(ctx, token, *externalID); err != nil {
		return err
	}
	fmt.Println("member removed")
	return nil
}

func commandLeaderboard(args []string) error {
	fs := flag.NewFlagSet("leaderboard", flag.ExitOnError)
	policy := fs.String("policy", "", "Fetch error policy (skip|report); server default when empty")
	sortBy := fs.String("sort", "solved", "Sort column (solved|easy|medium|hard|name)")
	fs.Parse(args)

	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	board, err := client.Leaderboard(ctx, token, *policy)
	if err != nil {
		return err
	}
	if err := sortEntries(board.Entries, *sortBy); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNAME\tLEETCODE ID\tSOLVED\tEASY\tMEDIUM\tHARD\tPROGRESS")
	for _, e := range board.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%.0f%%\n",
			e.Rank, e.DisplayName, e.Member.ExternalID,
			e.Snapshot.TotalSolved, e.Snapshot.Easy, e.Snapshot.Medium, e.Snapshot.Hard,
			e.Progress*100)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, f := range board.Failures {
		fmt.Fprintf(os.Stderr, "warning: %s (%s): %s\n", f.Member.ExternalID, f.Reason, f.Message)
	}
	return nil
}

// sortEntries reorders rows for display only; rank stays as computed by the server.
func sortEntries(entries []apiclient.Entry, column string) error {
	var less func(a, b apiclient.Entry) bool
	switch strings.ToLower(strings.TrimSpace(column)) {
	case "", "solved":
		return nil
	case "easy":
		less = func(a, b apiclient.Entry) bool { return a.Snapshot.Easy > b.Snapshot.Easy }
	case "medium":
		less = func(a, b apiclient.Entry) bool { return a.Snapshot.Medium > b.Snapshot.Medium }
	case "hard":
		less = func(a, b apiclient.Entry) bool { return a.Snapshot.Hard > b.Snapshot.Hard }
	case "name":
		less = func(a, b apiclient.Entry) bool {
			return strings.ToLower(a.DisplayName) < strings.ToLower(b.DisplayName)
		}
	default:
		return fmt.Errorf("unknown sort column: %s", column)
	}
	sort.SliceStable(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
	return nil
}

func commandProfile(args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	externalID := fs.String("id", "", "LeetCode username")
	days := fs.Int("days", 7, "Number of recent calendar days to show")
	fs.Parse(args)

	if strings.TrimSpace(*externalID) == "" {
		return errors.New("--id is required")
	}

	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	p, err := client.Profile(ctx, token, *externalID)
	if err != nil {
		return err
	}
	s := p.Snapshot
	fmt.Printf("%s (%s)\n", p.DisplayName, s.Username)
	fmt.Printf("ranking:\t%d\n", s.Ranking)
	fmt.Printf("solved:\t%d (easy %d, medium %d, hard %d)\n", s.TotalSolved, s.Easy, s.Medium, s.Hard)
	if s.AcceptanceRate != nil {
		fmt.Printf("acceptance:\t%.2f%%\n", *s.AcceptanceRate)
	}
	if *days <= 0 || len(s.Calendar) == 0 {
		return nil
	}
	dates := make([]string, 0, len(s.Calendar))
	for day := range s.Calendar {
		dates = append(dates, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) > *days {
		dates = dates[:*days]
	}
	fmt.Println("recent activity:")
	for _, day := range dates {
		fmt.Printf("  %s\t%d\n", day, s.Calendar[day])
	}
	return nil
}

func commandStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Parse(args)

	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	stats, err := client.Stats(ctx, token)
	if err != nil {
		return err
	}
	fmt.Printf("owners: %d\nteams: %d\nmembers: %d\n", stats.Owners, stats.Teams, stats.Members)
	return nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBaseURL()}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL()
	}
	return cfg, nil
}

func defaultAPIBaseURL() string {
	return config.GetString("TEAMBOARD_API_URL", apiclient.DefaultBaseURL)
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "teamboard", "config.json"), nil
}

func printUsage() {
	fmt.Printf("teamboard CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	teamboard register --handle <handle> [--password secret] [--api http://localhost:4000]
	teamboard login --handle <handle> [--password secret] [--api http://localhost:4000]
	teamboard logout
	teamboard members list
	teamboard members add --name <display name> --id <leetcode username>
	teamboard members remove --id <leetcode username>
	teamboard leaderboard [--policy skip|report] [--sort solved|easy|medium|hard|name]
	teamboard profile --id <leetcode username> [--days N]
	teamboard stats
	teamboard version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
