package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	blob := `{
		"url": "https://example.com",
		"tokenEndpoint": "https://tokens.indieauth.com/token",
		"database": "site.db",
		"server": {
			"host": "example.com",
			"certificate": "cert.pem",
			"privatekey": "key.pem",
			"port": 8443
		},
		"media": {
			"dir": "media",
			"urlPath": "/media/"
		},
		"syndicateTargets": [
			{"uid": "https://mastodon.example/@ben", "name": "Mastodon"}
		]
	}`

	config, err := ReadConfig([]byte(blob))
	require.NoError(t, err)

	expected := Config{
		URL:           "https://example.com",
		TokenEndpoint: "https://tokens.indieauth.com/token",
		Database:      "site.db",
		Server: serverConfig{
			HostName:    "example.com",
			Certificate: "cert.pem",
			PrivateKey:  "key.pem",
			Port:        8443,
		},
		Media: mediaConfig{
			Dir:     "media",
			URLPath: "/media/",
		},
		Targets: []SyndicationTarget{
			{UID: "https://mastodon.example/@ben", Name: "Mastodon"},
		},
	}
	assert.Equal(t, expected, config)
	assert.True(t, config.Server.useTLS())
}

func TestReadConfig_Defaults(t *testing.T) {
	config, err := ReadConfig([]byte(`{"url": "https://example.com"}`))
	require.NoError(t, err)

	assert.Equal(t, "micropub.db", config.Database)
	assert.Equal(t, "/uploads/", config.Media.URLPath)
	assert.False(t, config.Server.useTLS())
}

func TestReadConfig_Malformed(t *testing.T) {
	_, err := ReadConfig([]byte(`{"url": `))
	assert.Error(t, err)
}

func TestConfig_PublicHost(t *testing.T) {
	config := Config{URL: "https://example.com:8443"}
	assert.Equal(t, "example.com:8443", config.PublicHost())
}

func TestConfig_MediaURL(t *testing.T) {
	config := Config{URL: "https://example.com/", Media: mediaConfig{URLPath: "/uploads/"}}
	assert.Equal(t, "https://example.com/uploads/cat.jpg", config.MediaURL("cat.jpg"))
}

func TestConfig_Target(t *testing.T) {
	config := Config{Targets: []SyndicationTarget{{UID: "a", Name: "A"}}}

	target, ok := config.Target("a")
	assert.True(t, ok)
	assert.Equal(t, "A", target.Name)

	_, ok = config.Target("b")
	assert.False(t, ok)
}
