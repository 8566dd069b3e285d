package main

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// FTPEndpoint is what a device needs to pull a file from the watched server.
type FTPEndpoint struct {
	Host     string
	User     string
	Password string
}

// SourceURL is the directory URL a device copies from. User and password
// are escaped so that '@', ':' and '/' survive inside them.
func (ep FTPEndpoint) SourceURL() string {
	u := &url.URL{
		Scheme: "ftp",
		User:   url.UserPassword(ep.User, ep.Password),
		Host:   ep.Host,
		Path:   "/",
	}
	return u.String()
}

// escapedPassword is the password as it appears inside SourceURL.
func (ep FTPEndpoint) escapedPassword() string {
	return strings.TrimPrefix(url.UserPassword("", ep.Password).String(), ":")
}

// SuccessPredicate decides from the full handshake output whether the
// device reported a completed copy.
type SuccessPredicate func(output string) bool

func MarkerSuccess(marker string) SuccessPredicate {
	return func(output string) bool {
		return strings.Contains(output, marker)
	}
}

// Dialect describes the copy conversation of one device CLI.
type Dialect struct {
	Name string
	// Setup commands run once after login, each followed by a prompt.
	Setup         []string
	CopyCommand   func(ep FTPEndpoint, vrf string) string
	SourcePrompt  *regexp.Regexp
	DestPrompt    *regexp.Regexp
	CommandPrompt *regexp.Regexp
	Success       SuccessPredicate
}

var commandPrompt = regexp.MustCompile(`(?m)^[\w.\-()/:]+[>#]\s*$`)

var dialects = map[string]Dialect{
	"ios": {
		Name:  "ios",
		Setup: []string{"terminal length 0"},
		CopyCommand: func(ep FTPEndpoint, vrf string) string {
			cmd := fmt.Sprintf("copy %s bootflash:", ep.SourceURL())
			if vrf != "" {
				cmd += " vrf " + vrf
			}
			return cmd
		},
		SourcePrompt:  regexp.MustCompile(`(?i)source filename.*\?`),
		DestPrompt:    regexp.MustCompile(`(?i)destination filename.*\?`),
		CommandPrompt: commandPrompt,
		Success:       MarkerSuccess("[OK"), // "[OK]" or "[OK - 1234/4096 bytes]"
	},
	"nxos": {
		Name:  "nxos",
		Setup: []string{"terminal length 0"},
		CopyCommand: func(ep FTPEndpoint, vrf string) string {
			if vrf == "" {
				vrf = "default"
			}
			return fmt.Sprintf("copy %s bootflash: vrf %s", ep.SourceURL(), vrf)
		},
		SourcePrompt:  regexp.MustCompile(`(?i)source file\s*name.*[:?]`),
		DestPrompt:    regexp.MustCompile(`(?i)destination file\s*name.*[:?]`),
		CommandPrompt: commandPrompt,
		Success:       MarkerSuccess("Copy complete"),
	},
}

// lookupDialect returns the named dialect, with its success marker replaced
// when marker is not empty.
func lookupDialect(name, marker string) (Dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return Dialect{}, fmt.Errorf("unknown device dialect %q (known: %s)", name, strings.Join(dialectNames(), ", "))
	}
	if marker != "" {
		d.Success = MarkerSuccess(marker)
	}
	return d, nil
}

func dialectNames() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
