package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/multiseat/userlist/internal/flagx"
	"github.com/multiseat/userlist/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations can
// be given as strings like "3s" or as integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	ReconnectInterval  timex.Duration `json:"reconnect_interval"`
	CallTimeout        timex.Duration `json:"call_timeout"`
	PasswdPath         string         `json:"passwd_path"`
	GroupPath          string         `json:"group_path"`
	UsersGroup         string         `json:"users_group"`
	AdminGroup         string         `json:"admin_group"`
	SessionPath        string         `json:"session_path"`
}

// parseJson overlays cfg with values loaded from the JSON file named by the
// -c/-config flag. Without the flag nothing is loaded. Only fields present
// in the file override; read or unmarshal errors panic (the caller decides
// whether to recover).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.ReconnectInterval.Duration > 0 {
		cfg.ReconnectInterval = time.Duration(jc.ReconnectInterval.Duration)
	}
	if jc.CallTimeout.Duration > 0 {
		cfg.CallTimeout = time.Duration(jc.CallTimeout.Duration)
	}
	if jc.PasswdPath != "" {
		cfg.PasswdPath = jc.PasswdPath
	}
	if jc.GroupPath != "" {
		cfg.GroupPath = jc.GroupPath
	}
	if jc.UsersGroup != "" {
		cfg.UsersGroup = jc.UsersGroup
	}
	if jc.AdminGroup != "" {
		cfg.AdminGroup = jc.AdminGroup
	}
	if jc.SessionPath != "" {
		cfg.SessionPath = jc.SessionPath
	}
}
