// Package config holds the server configuration types.
package config

import (
	"fmt"
	"strings"
)

// Config stores all parameters gathered from CLI flags.
type Config struct {
	Addr   string // listen address, e.g. ":8080"
	DBPath string // SQLite transcript database; empty disables history

	STUNServers  []string // stun: URLs; empty means built-in defaults
	TURNURL      string   // optional turn: URL
	TURNUsername string
	TURNPassword string

	Debug bool
}

// ParseSTUNList splits a comma-separated list of stun: URLs.
func ParseSTUNList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var urls []string
	for _, u := range strings.Split(raw, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Validate checks flag combinations before startup.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	for _, u := range c.STUNServers {
		if !strings.HasPrefix(u, "stun:") && !strings.HasPrefix(u, "stuns:") {
			return fmt.Errorf("invalid STUN URL: %s", u)
		}
	}
	if c.TURNURL != "" && (c.TURNUsername == "" || c.TURNPassword == "") {
		return fmt.Errorf("-turn requires -turnUser and -turnPass")
	}
	if c.TURNURL == "" && (c.TURNUsername != "" || c.TURNPassword != "") {
		return fmt.Errorf("-turnUser/-turnPass require -turn")
	}
	return nil
}
