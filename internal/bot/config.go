package bot

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the full configuration surface. Values come from TS3_*
// environment variables with an optional rollabot config file underneath
// (env wins).
type Settings struct {
	ClientQueryAddr string
	APIKey          string
	ServerAddress   string
	Nickname        string
	IgnoreNickname  string // helper bot whose messages we never answer

	ClientCommand []string
	ClientWorkdir string
	ClientPIDFile string

	ReconnectDelay      time.Duration
	EventTimeout        time.Duration
	ResponseWaitLines   int
	ResponseWaitTimeout time.Duration

	DefaultChannelID int

	ActivityLogPath   string
	ClientsLogPath    string
	WarStatsLogPath   string
	RegistrationsPath string

	GuildURL    string
	WarStatsURL string

	PanelAddr string
	Debug     bool
}

// ErrMissingAPIKey aborts startup; without the key no session can ever
// authenticate.
var ErrMissingAPIKey = errors.New("TS3_CLIENTQUERY_API_KEY is required")

// LoadSettings reads the environment (TS3_ prefix) plus an optional
// rollabot.{yaml,json,toml} file in the working directory.
func LoadSettings() (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("ts3")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("clientquery_addr", "127.0.0.1:25639")
	v.SetDefault("clientquery_api_key", "")
	v.SetDefault("server_address", "")
	v.SetDefault("nickname", "Rollabot")
	v.SetDefault("xbot_nickname", "x3tBot Auroria")
	v.SetDefault("client_command", "")
	v.SetDefault("client_workdir", "")
	v.SetDefault("client_pid_file", ".tsclient.pid")
	v.SetDefault("reconnect_delay", "1s")
	v.SetDefault("event_timeout", "3s")
	v.SetDefault("response_lines", 10)
	v.SetDefault("response_timeout", "1s")
	v.SetDefault("default_channel", 0)
	v.SetDefault("activity_log", "activity_log.csv")
	v.SetDefault("clients_log", "clients_log.csv")
	v.SetDefault("war_stats_log", "war_stats_daily.csv")
	v.SetDefault("registrations_file", "exp_registrations.txt")
	v.SetDefault("guild_url", "")
	v.SetDefault("war_stats_url", "")
	v.SetDefault("panel_addr", "")
	v.SetDefault("debug", false)

	v.SetConfigName("rollabot")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	s := &Settings{
		ClientQueryAddr:     v.GetString("clientquery_addr"),
		APIKey:              strings.TrimSpace(v.GetString("clientquery_api_key")),
		ServerAddress:       v.GetString("server_address"),
		Nickname:            v.GetString("nickname"),
		IgnoreNickname:      v.GetString("xbot_nickname"),
		ClientCommand:       parseCommand(v.GetString("client_command")),
		ClientWorkdir:       v.GetString("client_workdir"),
		ClientPIDFile:       v.GetString("client_pid_file"),
		ReconnectDelay:      v.GetDuration("reconnect_delay"),
		EventTimeout:        v.GetDuration("event_timeout"),
		ResponseWaitLines:   v.GetInt("response_lines"),
		ResponseWaitTimeout: v.GetDuration("response_timeout"),
		DefaultChannelID:    v.GetInt("default_channel"),
		ActivityLogPath:     v.GetString("activity_log"),
		ClientsLogPath:      v.GetString("clients_log"),
		WarStatsLogPath:     v.GetString("war_stats_log"),
		RegistrationsPath:   v.GetString("registrations_file"),
		GuildURL:            v.GetString("guild_url"),
		WarStatsURL:         v.GetString("war_stats_url"),
		PanelAddr:           v.GetString("panel_addr"),
		Debug:               v.GetBool("debug"),
	}

	if s.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return s, nil
}

func parseCommand(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return strings.Fields(value)
}
