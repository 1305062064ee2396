// Package config loads runtime settings for the userctl client.
package config

import "time"

// Config holds runtime settings for the user-list client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the accounts service gRPC endpoint.
//   - ReconnectInterval: pause between watch attempts while the service is
//     unreachable.
//   - CallTimeout: per-call deadline for management calls.
//   - PasswdPath/GroupPath: local account databases.
//   - UsersGroup: the group whose members make up the user list.
//   - AdminGroup: membership classifies an account as administrative.
//   - SessionPath: state file naming the uid that owns the active session.
type Config struct {
	ServerEndpointAddr string
	ReconnectInterval  time.Duration
	CallTimeout        time.Duration
	PasswdPath         string
	GroupPath          string
	UsersGroup         string
	AdminGroup         string
	SessionPath        string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:7600"
	c.ReconnectInterval = 3 * time.Second
	c.CallTimeout = 25 * time.Second
	c.PasswdPath = "/etc/passwd"
	c.GroupPath = "/etc/group"
	c.UsersGroup = "users"
	c.AdminGroup = "wheel"
	c.SessionPath = "/run/userlist/session"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
