package defs

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	EnvURL    = "LIVEKIT_URL"
	EnvKey    = "LIVEKIT_API_KEY"
	EnvSecret = "LIVEKIT_API_SECRET"

	SourcePattern = "pattern"
	SourceImage   = "image"
	SourceCamera  = "camera"
)

type PortalConf struct {
	Ws     string `yaml:"ws"`
	Host   string `yaml:"host"` // room service endpoint, derived from ws when empty
	Key    string `yaml:"key"`
	Secret string `yaml:"secret"`

	Room     string `yaml:"room"`
	Identity string `yaml:"identity"`
	Admin    bool   `yaml:"admin"`

	TokenTTL       time.Duration `yaml:"token_ttl"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ApiTimeout     time.Duration `yaml:"api_timeout"`
	RetryDelay     time.Duration `yaml:"retry_delay"`

	PendingEvents int `yaml:"pending_events"` // native event buffer, oldest dropped beyond it
	Results       int `yaml:"results"`

	Video   VideoConf   `yaml:"video"`
	Logging LoggingConf `yaml:"logging"`
	Panel   PanelConf   `yaml:"panel"`
}

type VideoConf struct {
	W      int    `yaml:"width"`
	H      int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
	Source string `yaml:"source"` // pattern, image or camera
	Static string `yaml:"static"` // image file for "image"
	Camera int    `yaml:"camera"` // device id for "camera"
}

type LoggingConf struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type PanelConf struct {
	Addr string        `yaml:"addr"`
	Tick time.Duration `yaml:"tick"`
}

func DefaultConf() *PortalConf {
	return &PortalConf{
		Room:           "test",
		Admin:          true,
		TokenTTL:       2 * time.Hour,
		ConnectTimeout: 15 * time.Second,
		ApiTimeout:     10 * time.Second,
		RetryDelay:     500 * time.Millisecond,
		PendingEvents:  256,
		Results:        16,
		Video: VideoConf{
			W:      512,
			H:      256,
			FPS:    15,
			Source: SourcePattern,
		},
		Logging: LoggingConf{Level: "info"},
		Panel: PanelConf{
			Addr: ":8088",
			Tick: time.Second / 60,
		},
	}
}

// LoadConf reads the yaml file (if any), then .env and LIVEKIT_* variables on top of it.
func LoadConf(path string) (c *PortalConf, err error) {
	c = DefaultConf()
	if path != "" {
		var b []byte
		if b, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrap(err, "reading config")
		}
		if err = yaml.Unmarshal(b, c); err != nil {
			return nil, errors.Wrap(err, "parsing config")
		}
	}

	// .env is optional
	_ = godotenv.Load()
	c.applyEnv()

	if err = c.Validate(); err != nil {
		return nil, err
	}
	return
}

func (c *PortalConf) applyEnv() {
	if v := os.Getenv(EnvURL); v != "" {
		c.Ws = v
	}
	if v := os.Getenv(EnvKey); v != "" {
		c.Key = v
	}
	if v := os.Getenv(EnvSecret); v != "" {
		c.Secret = v
	}
}

func (c *PortalConf) Validate() error {
	switch {
	case c.Ws == "":
		return errors.Wrap(ErrBadConfig, "ws url is not set")
	case c.Key == "" || c.Secret == "":
		return errors.Wrap(ErrBadConfig, "api key/secret are not set")
	case c.Video.FPS <= 0:
		return errors.Wrapf(ErrBadConfig, "fps %d", c.Video.FPS)
	case c.Video.W <= 0 || c.Video.H <= 0 || c.Video.W%2 != 0 || c.Video.H%2 != 0:
		return errors.Wrapf(ErrBadConfig, "video size %dx%d", c.Video.W, c.Video.H)
	}
	switch c.Video.Source {
	case SourcePattern, SourceCamera:
	case SourceImage:
		if c.Video.Static == "" {
			return errors.Wrap(ErrBadConfig, "image source without static file")
		}
	default:
		return errors.Wrapf(ErrBadConfig, "unknown video source %q", c.Video.Source)
	}
	return nil
}

// HttpURL is the room service endpoint: Host, or the ws url with its scheme swapped.
func (c *PortalConf) HttpURL() string {
	if c.Host != "" {
		return c.Host
	}
	switch {
	case strings.HasPrefix(c.Ws, "wss://"):
		return "https://" + strings.TrimPrefix(c.Ws, "wss://")
	case strings.HasPrefix(c.Ws, "ws://"):
		return "http://" + strings.TrimPrefix(c.Ws, "ws://")
	}
	return c.Ws
}

// FrameInterval is the frame pump cadence.
func (c *VideoConf) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FPS)
}
