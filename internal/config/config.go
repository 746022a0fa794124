// Package config loads the worker configuration from a YAML file with an
// optional .env overlay for deployment-specific keys.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Version   VersionConfig   `yaml:"version"`
	Log       LogConfig       `yaml:"log"`
	HTTPPort  int             `yaml:"http_port"`
	ImgRoot   string          `yaml:"img_root"`
	ImgURL    string          `yaml:"img_url"`
	API       APIConfig       `yaml:"api"`
	DB        DBConfig        `yaml:"db"`
	Track     TrackConfig     `yaml:"track"`
	WS        WSConfig        `yaml:"ws"`
	Web       WebConfig       `yaml:"web"`
	Notify    NotifyConfig    `yaml:"notify"`
	DiskClean DiskCleanConfig `yaml:"disk_clean"`

	// LocalIP is detected at startup, not configured.
	LocalIP string `yaml:"-"`
}

type VersionConfig struct {
	Product string `yaml:"product"`
	Ver     string `yaml:"ver"`
	APIVer  string `yaml:"api_ver"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

type APIConfig struct {
	GrabURL string `yaml:"grab_url"`
	RecgURL string `yaml:"recg_url"`
}

type DBConfig struct {
	Path string `yaml:"path"`
	TZ   string `yaml:"tz"`
}

// RecvMode controls when a track becomes ready for publication.
type RecvMode struct {
	Fast    bool    `yaml:"fast"`
	Count   int     `yaml:"count"`
	Quality float64 `yaml:"quality"`
}

// TrackKindConfig tunes one coalescer (face or vehicle).
type TrackKindConfig struct {
	RecvMode   RecvMode `yaml:"recv_mode"`
	WLAlarm    bool     `yaml:"wl_alarm"`
	ClearDelay int64    `yaml:"clear_delay"` // milliseconds
	ReadyDelay int64    `yaml:"ready_delay"` // milliseconds
}

func (k TrackKindConfig) ClearDelayDur() time.Duration {
	return time.Duration(k.ClearDelay) * time.Millisecond
}

func (k TrackKindConfig) ReadyDelayDur() time.Duration {
	return time.Duration(k.ReadyDelay) * time.Millisecond
}

type TrackConfig struct {
	SkipSearch   bool            `yaml:"skip_search"`
	Debug        bool            `yaml:"debug"`
	SearchWorker int             `yaml:"search_worker"`
	SearchBatch  int             `yaml:"search_batch"`
	Face         TrackKindConfig `yaml:"facetrack"`
	Vehicle      TrackKindConfig `yaml:"cartrack"`
}

type WSConfig struct {
	Batch int `yaml:"batch"`
}

type NodeConfig struct {
	Sid string `yaml:"sid"`
	URL string `yaml:"url"`
}

type WebConfig struct {
	NotifyURL  string     `yaml:"notify_url"`
	ClientNode NodeConfig `yaml:"client_node"`
	ServerNode NodeConfig `yaml:"server_node"`
	UploadURL  string     `yaml:"upload_url"`
	UploadPath string     `yaml:"upload_path"`
}

// NotifyConfig enables the optional Redis fan-out of judged tracks.
type NotifyConfig struct {
	RedisAddr    string `yaml:"redis_addr"`
	RedisChannel string `yaml:"redis_channel"`
}

type DiskCleanConfig struct {
	Enable         bool  `yaml:"enable"`
	AvailSizeM     int64 `yaml:"avail_size_m"`
	CleanFtBatch   int   `yaml:"clean_ft_batch"`
	CleanCtBatch   int   `yaml:"clean_ct_batch"`
	IntervalMinute int   `yaml:"interval_minute"`
}

// Load reads the YAML file at path, applies environment overrides and
// resolves placeholder variables.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	cfg.LocalIP = detectLocalIP()
	cfg.replaceVars()

	return &cfg, nil
}

// applyEnv overrides deployment-specific keys from the environment. The
// .env file, when present, is loaded into the environment by main before
// Load runs.
func (c *Config) applyEnv() {
	if v := os.Getenv("TRACKD_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTPPort = port
		}
	}
	if v := os.Getenv("TRACKD_DB_PATH"); v != "" {
		c.DB.Path = v
	}
	if v := os.Getenv("TRACKD_IMG_ROOT"); v != "" {
		c.ImgRoot = v
	}
	if v := os.Getenv("TRACKD_REDIS_ADDR"); v != "" {
		c.Notify.RedisAddr = v
	}
}

func (c *Config) applyDefaults() {
	if c.HTTPPort == 0 {
		c.HTTPPort = 7001
	}
	if c.Track.SearchWorker <= 0 {
		c.Track.SearchWorker = 1
	}
	if c.Track.SearchBatch <= 0 {
		c.Track.SearchBatch = 1
	}
	if c.WS.Batch <= 0 {
		c.WS.Batch = 20
	}
	if c.Notify.RedisChannel == "" {
		c.Notify.RedisChannel = "trackd.judged"
	}
}

// replaceVars substitutes ${http_port} and ${local_ip} in URL-valued
// fields.
func (c *Config) replaceVars() {
	port := strconv.Itoa(c.HTTPPort)
	repl := func(s string) string {
		s = strings.ReplaceAll(s, "${http_port}", port)
		s = strings.ReplaceAll(s, "${local_ip}", c.LocalIP)
		return s
	}

	c.ImgURL = repl(c.ImgURL)
	c.Web.NotifyURL = repl(c.Web.NotifyURL)
	c.Web.UploadURL = repl(c.Web.UploadURL)
	c.Web.ClientNode.URL = repl(c.Web.ClientNode.URL)
	c.Web.ServerNode.URL = repl(c.Web.ServerNode.URL)
}

// Validate rejects configurations the worker cannot start with.
func (c *Config) Validate() error {
	if c.DB.Path == "" {
		return fmt.Errorf("config: db.path is required")
	}
	if c.ImgRoot == "" {
		return fmt.Errorf("config: img_root is required")
	}
	if c.Track.Face.ClearDelay <= 0 || c.Track.Vehicle.ClearDelay <= 0 {
		return fmt.Errorf("config: clear_delay must be positive")
	}
	return nil
}

func detectLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}
