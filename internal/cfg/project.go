package cfg

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/keithlinneman/quarry/internal/xerrors"
)

// ProjectFile is the optional per-project config in the project root.
const ProjectFile = "quarry.toml"

// Project holds settings that belong to a project rather than to a
// server deployment. Flags and env still win: ApplyTo only fills
// fields the operator left at their defaults.
type Project struct {
	BaseURL string `toml:"base_url"`

	Panel struct {
		SessionTTL   duration `toml:"session_ttl"`
		CookieSecure bool     `toml:"cookie_secure"`
		MaxUploadMB  int      `toml:"max_upload_mb"`
	} `toml:"panel"`
}

// duration lets TOML carry Go duration strings ("36h", "15m").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// LoadProject reads quarry.toml from the project directory. A missing
// file is not an error; the zero Project applies nothing.
func LoadProject(projectDir string) (Project, error) {
	var p Project
	path := filepath.Join(projectDir, ProjectFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, xerrors.Wrapf(err, "reading %s", path)
	}
	if err := toml.Unmarshal(data, &p); err != nil {
		return p, xerrors.Wrapf(err, "parsing %s", path)
	}
	return p, nil
}

// ApplyTo copies project settings into app config fields that were not
// set explicitly. changed reports flag names the operator set.
func (p Project) ApplyTo(c *App, changed func(name string) bool) {
	if p.BaseURL != "" && !changed("base-url") {
		c.BaseURL = p.BaseURL
	}
	if p.Panel.SessionTTL.Duration > 0 && !changed("session-ttl") {
		c.SessionTTL = p.Panel.SessionTTL.Duration
	}
	if p.Panel.CookieSecure && !changed("cookie-secure") {
		c.CookieSecure = true
	}
	if p.Panel.MaxUploadMB > 0 && !changed("max-upload-mb") {
		c.MaxUploadMB = p.Panel.MaxUploadMB
	}
}
