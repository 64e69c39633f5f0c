package server

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
)

type serverConfig struct {
	HostName    string `json:"host"`
	Certificate string `json:"certificate"`
	PrivateKey  string `json:"privatekey"`
	Port        int    `json:"port"`
}

func (s serverConfig) useTLS() bool {
	return s.Certificate != "" && s.PrivateKey != ""
}

type mediaConfig struct {
	Dir     string `json:"dir"`     // directory uploads are written to
	URLPath string `json:"urlPath"` // public path prefix for stored files
}

// SyndicationTarget is a configured destination offered to clients via
// the config and syndicate-to queries and matched against
// mp-syndicate-to values by uid.
type SyndicationTarget struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

type Config struct {
	URL           string              `json:"url"` // public-facing URL
	TokenEndpoint string              `json:"tokenEndpoint"`
	Database      string              `json:"database"`
	Server        serverConfig        `json:"server"`
	Media         mediaConfig         `json:"media"`
	Targets       []SyndicationTarget `json:"syndicateTargets"`
}

func (c Config) PublicHost() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Target looks up a configured syndication target by uid.
func (c Config) Target(uid string) (SyndicationTarget, bool) {
	for _, t := range c.Targets {
		if t.UID == uid {
			return t, true
		}
	}
	return SyndicationTarget{}, false
}

// MediaURL returns the public URL for a stored media file name.
func (c Config) MediaURL(name string) string {
	return strings.TrimSuffix(c.URL, "/") + path.Join("/", c.Media.URLPath, name)
}

// MediaEndpoint returns the URL of the media upload endpoint.
func (c Config) MediaEndpoint() string {
	return strings.TrimSuffix(c.URL, "/") + "/micropub/media"
}

// Permalink builds the canonical URL for a post path.
func (c Config) Permalink(path string) string {
	return strings.TrimSuffix(c.URL, "/") + path
}

func ReadConfig(b []byte) (config Config, err error) {
	if uErr := json.Unmarshal(b, &config); uErr != nil {
		return config, uErr
	}
	if config.Database == "" {
		config.Database = "micropub.db"
	}
	if config.Media.URLPath == "" {
		config.Media.URLPath = "/uploads/"
	}
	return config, nil
}
