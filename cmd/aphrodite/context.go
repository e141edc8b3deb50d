package main

import (
	"net"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jackkerouac/aphrodite-sub000/internal/config"
)

type commandContext struct {
	serverFlag *string
	tokenFlag  *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(serverFlag, tokenFlag, configFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		tokenFlag:  tokenFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = &configError{err: err}
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// client builds the API client from the --server/--token flags, falling back
// to the configuration file for whatever the flags leave unset.
func (c *commandContext) client() (*apiClient, error) {
	server := ""
	if c.serverFlag != nil {
		server = strings.TrimSpace(*c.serverFlag)
	}
	token := ""
	if c.tokenFlag != nil {
		token = strings.TrimSpace(*c.tokenFlag)
	}

	if server == "" {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		server = apiBaseURL(cfg.Paths.APIBind)
		if token == "" {
			token = cfg.Paths.APIToken
		}
	}
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	return newAPIClient(server, token), nil
}

// apiBaseURL turns a listen address into something dialable: wildcard hosts
// bind every interface but cannot be connected to by name.
func apiBaseURL(bind string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return "http://" + strings.TrimSpace(bind)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// hasExplicitServer reports whether --server was set, making the config file
// unnecessary for daemon-facing commands.
func (c *commandContext) hasExplicitServer() bool {
	return c.serverFlag != nil && strings.TrimSpace(*c.serverFlag) != ""
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
