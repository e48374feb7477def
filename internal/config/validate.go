package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"flyer/internal/backend"
	"flyer/internal/codec"
	"flyer/internal/logging"
)

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Listen != "" {
		if err := validateListenAddr(c.HTTP.Listen); err != nil {
			errs = append(errs, fmt.Errorf("http.listen: %w", err))
		}
	}
	if c.SSH.Listen != "" {
		if err := validateListenAddr(c.SSH.Listen); err != nil {
			errs = append(errs, fmt.Errorf("ssh.listen: %w", err))
		}
	}

	kind := strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if kind != "" && !slices.Contains(backend.Kinds(), kind) {
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q (want one of %s)",
			c.Storage.Backend, strings.Join(backend.Kinds(), ", ")))
	}
	if kind == backend.KindRemote {
		if err := validateRemoteURL(c.Storage.RemoteURL); err != nil {
			errs = append(errs, fmt.Errorf("storage.remote_url: %w", err))
		}
	}
	if strings.TrimSpace(c.Storage.Slot) == "" {
		errs = append(errs, errors.New("storage.slot: must not be empty"))
	}
	if _, err := codec.Lookup(c.Storage.Codec); err != nil {
		errs = append(errs, fmt.Errorf("storage.codec: %w", err))
	}
	if c.Storage.RemoteTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("storage.remote_timeout: must not be negative, got %s", c.Storage.RemoteTimeout))
	}

	if err := validateLogLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q (want text or json)", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func validateListenAddr(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return errors.New("address is empty")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host == "" {
		return fmt.Errorf("missing host in %q (use 0.0.0.0 to listen on all interfaces)", addr)
	}
	if port == "" {
		return fmt.Errorf("missing port in %q", addr)
	}
	return nil
}

func validateRemoteURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("required for the remote backend")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func validateLogLevel(level string) error {
	if !logging.ValidLevel(level) {
		return fmt.Errorf("unknown level %q (want debug, info, warn or error)", level)
	}
	return nil
}
