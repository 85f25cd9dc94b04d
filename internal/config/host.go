package config

import (
	"maps"
	"strings"
)

// HostConfig holds request settings for one host.
type HostConfig struct {
	// Cookie is sent as the Cookie header.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// RequestHeaders returns Headers plus the Cookie header, if any.
func (h HostConfig) RequestHeaders() map[string]string {
	if h.Cookie == "" && len(h.Headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(h.Headers)+1)
	maps.Copy(out, h.Headers)
	if h.Cookie != "" {
		out["Cookie"] = h.Cookie
	}
	return out
}

// File represents the structure of the .webcrawler configuration file.
type File struct {
	// Defaults apply to every host unless overridden in Hosts.
	Defaults HostConfig `yaml:"defaults,omitempty"`

	// Hosts maps host names (without scheme or port) to their settings.
	Hosts map[string]HostConfig `yaml:"hosts,omitempty"`

	// AllowHosts restricts crawling to these hosts when --hosts is not given.
	AllowHosts []string `yaml:"allowHosts,omitempty"`
}

// HostConfig returns the configuration for host merged over the defaults.
// Host names are matched case-insensitively.
func (f *File) HostConfig(host string) HostConfig {
	result := HostConfig{Cookie: f.Defaults.Cookie}
	if len(f.Defaults.Headers) > 0 {
		result.Headers = maps.Clone(f.Defaults.Headers)
	}

	hc, ok := f.Hosts[host]
	if !ok {
		for name, cfg := range f.Hosts {
			if strings.EqualFold(name, host) {
				hc, ok = cfg, true
				break
			}
		}
	}
	if !ok {
		return result
	}

	if hc.Cookie != "" {
		result.Cookie = hc.Cookie
	}
	if len(hc.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(hc.Headers))
		}
		maps.Copy(result.Headers, hc.Headers)
	}
	return result
}
