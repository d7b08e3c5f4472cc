package config_test

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lc/adns/internal/config"
)

type ConfigTestSuite struct {
	suite.Suite
	fs       mockFS
	provider config.Provider
}

type mockFS struct {
	files map[string]string
}

func (m mockFS) Stat(path string) (os.FileInfo, error) {
	if _, ok := m.files[path]; !ok {
		return nil, os.ErrNotExist
	}
	return nil, nil
}

func (m mockFS) MkdirAll(_ string, _ os.FileMode) error {
	return nil
}

func (m mockFS) Open(path string) (*os.File, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	tmp, err := os.CreateTemp("", "mock-*")
	if err != nil {
		return nil, err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, err
	}
	return tmp, nil
}

func (m mockFS) WriteFile(path string, content []byte, _ os.FileMode) error {
	m.files[path] = string(content)
	return nil
}

func (s *ConfigTestSuite) SetupTest() {
	s.fs = mockFS{
		files: make(map[string]string),
	}
	s.provider = config.NewWithPath(s.fs, "test/config.yaml")
}

func (s *ConfigTestSuite) TestLoadDefaultWhenNoFile() {
	// When loading configuration with no file present
	cfg, err := s.provider.Load()

	// Then default configuration should be returned
	s.Require().NoError(err)
	s.Equal(config.DefaultSocketPath, cfg.Socket.Path)
	s.Equal([]string{config.DefaultUpstream}, cfg.Resolver.Upstreams)
	s.Equal(config.DefaultTimeout, cfg.Resolver.Timeout)
	s.Equal(uint(config.DefaultRetries), cfg.Resolver.Retries)
}

func (s *ConfigTestSuite) TestLoadValidConfig() {
	// Given a valid config file
	s.fs.files["test/config.yaml"] = `
socket:
  path: /custom/socket
resolver:
  upstreams:
    - 9.9.9.9:53
    - 8.8.8.8:53
  timeout: 10s
  retries: 4
`
	// When loading configuration
	cfg, err := s.provider.Load()

	// Then custom values should be loaded
	s.Require().NoError(err)
	s.Equal("/custom/socket", cfg.Socket.Path)
	s.Equal([]string{"9.9.9.9:53", "8.8.8.8:53"}, cfg.Resolver.Upstreams)
	s.Equal(10*time.Second, cfg.Resolver.Timeout)
	s.Equal(uint(4), cfg.Resolver.Retries)
}

func (s *ConfigTestSuite) TestValidation() {
	valid := func() config.Config {
		return config.Config{
			Socket: config.SocketConfig{Path: "/tmp/socket"},
			Resolver: config.ResolverConfig{
				Upstreams: []string{"1.1.1.1:53"},
				Timeout:   5 * time.Second,
			},
		}
	}

	testCases := []struct {
		name        string
		mutate      func(c *config.Config)
		expectedErr string
	}{
		{
			name:   "valid configuration",
			mutate: func(*config.Config) {},
		},
		{
			name:   "empty socket path",
			mutate: func(c *config.Config) { c.Socket.Path = "" },

			expectedErr: "socket path cannot be empty",
		},
		{
			name:        "socket path only whitespace",
			mutate:      func(c *config.Config) { c.Socket.Path = "   \t\n" },
			expectedErr: "socket path cannot be empty",
		},
		{
			name:        "timeout zero",
			mutate:      func(c *config.Config) { c.Resolver.Timeout = 0 },
			expectedErr: "resolver timeout must be at least 1 second",
		},
		{
			name:        "timeout negative",
			mutate:      func(c *config.Config) { c.Resolver.Timeout = -time.Second },
			expectedErr: "resolver timeout must be at least 1 second",
		},
		{
			name:        "timeout too short",
			mutate:      func(c *config.Config) { c.Resolver.Timeout = 500 * time.Millisecond },
			expectedErr: "resolver timeout must be at least 1 second",
		},
		{
			name:   "timeout exactly 1 second",
			mutate: func(c *config.Config) { c.Resolver.Timeout = time.Second },
		},
		{
			name:        "upstream without port",
			mutate:      func(c *config.Config) { c.Resolver.Upstreams = []string{"1.1.1.1"} },
			expectedErr: "must be host:port",
		},
		{
			name:   "no upstreams is allowed",
			mutate: func(c *config.Config) { c.Resolver.Upstreams = nil },
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			cfg := valid()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.expectedErr == "" {
				s.NoError(err)
			} else {
				s.Error(err)
				s.Contains(err.Error(), tc.expectedErr)
			}
		})
	}
}

func (s *ConfigTestSuite) TestLoadInvalidConfigFails() {
	s.fs.files["test/config.yaml"] = `
socket:
  path: /custom/socket
resolver:
  timeout: 1ms
`
	_, err := s.provider.Load()
	s.ErrorIs(err, config.ErrInvalidConfig)
}

func (s *ConfigTestSuite) TestLoadInvalidYAML() {
	// Given an invalid YAML file
	s.fs.files["test/config.yaml"] = `
socket:
  path: [invalid: yaml]
`
	// When loading configuration
	_, err := s.provider.Load()

	// Then an error should be returned
	s.Error(err)
	s.Contains(err.Error(), "decoding config file")
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
