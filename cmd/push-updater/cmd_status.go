package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pushchain/push-updater/internal/config"
	"github.com/pushchain/push-updater/internal/update"
	ui "github.com/pushchain/push-updater/internal/ui"
)

// statusResult is what `status` reports, in every output format.
type statusResult struct {
	Binary         string     `json:"binary" yaml:"binary"`
	CurrentVersion string     `json:"current_version" yaml:"current_version"`
	Source         string     `json:"source" yaml:"source"`
	Channel        string     `json:"channel" yaml:"channel"`
	DevMode        bool       `json:"dev_mode" yaml:"dev_mode"`
	LastCheck      *time.Time `json:"last_check,omitempty" yaml:"last_check,omitempty"`
	Stale          bool       `json:"stale" yaml:"stale"`
	LatestVersion  string     `json:"latest_version,omitempty" yaml:"latest_version,omitempty"`
	UpdateAvail    bool       `json:"update_available" yaml:"update_available"`
	ReleaseURL     string     `json:"release_url,omitempty" yaml:"release_url,omitempty"`
	Notes          string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	Pending        string     `json:"pending_version,omitempty" yaml:"pending_version,omitempty"`
	PendingSince   *time.Time `json:"pending_since,omitempty" yaml:"pending_since,omitempty"`
	Backup         string     `json:"backup,omitempty" yaml:"backup,omitempty"`
	DiskFree       uint64     `json:"disk_free_bytes,omitempty" yaml:"disk_free_bytes,omitempty"`
	Warnings       []string   `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var showNotes bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show last check, pending update and backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			res := computeStatus(d)
			if d.Printer.IsStructured() {
				d.Printer.Structured(res)
				return nil
			}
			printStatusText(d, res, showNotes)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showNotes, "notes", true, "Render release notes of the latest version")
	return cmd
}

func computeStatus(d *Deps) statusResult {
	cfg := d.Cfg
	res := statusResult{
		Binary:         d.Updater.BinaryPath,
		CurrentVersion: cfg.CurrentVersion,
		Channel:        cfg.Channel,
		DevMode:        cfg.DevMode,
	}
	if cfg.Source == config.SourceGitHub {
		res.Source = fmt.Sprintf("github:%s/%s", cfg.GitHubOwner, cfg.GitHubRepo)
	} else {
		res.Source = "manifest:" + cfg.ManifestURL
	}

	switch in, err := update.LoadInstalled(cfg.HomeDir); {
	case err != nil:
		res.Warnings = append(res.Warnings, fmt.Sprintf("install record unreadable: %v", err))
	case in != nil && in.BinaryPath == res.Binary && update.IsNewerVersion(res.CurrentVersion, in.Version):
		res.CurrentVersion = in.Version
	}

	if cache, err := update.LoadCache(cfg.HomeDir); err == nil && cache != nil {
		checked := cache.CheckedAt
		res.LastCheck = &checked
		res.Stale = !update.IsCacheValid(cache)
		res.LatestVersion = cache.LatestVersion
		res.ReleaseURL = cache.ReleaseURL
		res.Notes = cache.Notes
		// cache may predate the running version
		res.UpdateAvail = cache.UpdateAvailable && update.IsNewerVersion(res.CurrentVersion, cache.LatestVersion)
	}

	switch p, err := update.LoadPending(cfg.HomeDir); {
	case err != nil:
		res.Warnings = append(res.Warnings, fmt.Sprintf("pending marker unreadable: %v", err))
	case p != nil:
		res.Pending = p.Version
		fetched := p.FetchedAt
		res.PendingSince = &fetched
	}

	if d.Updater.HasBackup() {
		res.Backup = d.Updater.BackupPath()
	}
	if free, err := d.Updater.FreeSpace(); err == nil {
		res.DiskFree = free
	}
	return res
}

func printStatusText(d *Deps, res statusResult, showNotes bool) {
	p := d.Printer
	c := p.Colors

	p.Header("Push Updater Status")
	p.KeyValueLine("Binary", res.Binary, "")
	p.KeyValueLine("Version", displayVersion(res.CurrentVersion), "")
	p.KeyValueLine("Source", fmt.Sprintf("%s (%s)", res.Source, res.Channel), "")
	if res.DevMode {
		p.KeyValueLine("Mode", "development (checks are skipped)", "yellow")
	}

	p.Section("Last check")
	if res.LastCheck == nil {
		p.KeyValueLine("Checked", "never", "dim")
	} else {
		checked := humanSince(*res.LastCheck)
		if res.Stale {
			p.KeyValueLine("Checked", checked+" (run 'push-updater check' to refresh)", "dim")
		} else {
			p.KeyValueLine("Checked", checked, "")
		}
		latest := displayVersion(res.LatestVersion)
		if res.UpdateAvail {
			p.KeyValueLine("Latest", latest+" "+c.StatusIcon("warning")+" update available", "yellow")
		} else {
			p.KeyValueLine("Latest", latest+" "+c.StatusIcon("success"), "green")
		}
	}

	p.Section("Local state")
	if res.Pending != "" {
		since := ""
		if res.PendingSince != nil {
			since = " (fetched " + humanSince(*res.PendingSince) + ")"
		}
		p.KeyValueLine("Pending", displayVersion(res.Pending)+since+", restart to apply", "yellow")
	} else {
		p.KeyValueLine("Pending", "none", "dim")
	}
	if res.Backup != "" {
		p.KeyValueLine("Backup", res.Backup, "")
	} else {
		p.KeyValueLine("Backup", "none", "dim")
	}
	if res.DiskFree > 0 {
		p.KeyValueLine("Disk free", ui.FormatBytes(int64(res.DiskFree)), "")
	}
	for _, w := range res.Warnings {
		p.Warn(w)
	}

	if showNotes && res.UpdateAvail && res.Notes != "" {
		p.Section("Release notes " + displayVersion(res.LatestVersion))
		p.Textf("%s\n", ui.RenderNotes(res.Notes, terminalWidth(), c.Enabled))
		if res.ReleaseURL != "" {
			p.Textf("%s\n", c.Description(res.ReleaseURL))
		}
	}
}

func displayVersion(v string) string {
	if v == "" {
		return "unknown"
	}
	if v == "dev" || v[0] == 'v' {
		return v
	}
	return "v" + v
}

func humanSince(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		return min(w, 100)
	}
	return 80
}
