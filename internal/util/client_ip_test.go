package util

import (
	"net/http/httptest"
	"net/netip"
	"testing"
)

// deploymentProxies mirrors a TRUSTED_PROXIES value for the API running
// behind a local reverse proxy and a container network.
var deploymentProxies = []string{"127.0.0.1", " ::1 ", "172.16.0.0/12", ""}

func TestClientIPBehindDeploymentProxies(t *testing.T) {
	trusted, err := NewTrustedProxies(deploymentProxies)
	if err != nil {
		t.Fatalf("parse proxies: %v", err)
	}

	tests := []struct {
		name   string
		peer   string
		header map[string]string
		want   string
	}{
		{
			name:   "container ingress forwards the client",
			peer:   "172.18.0.2:41000",
			header: map[string]string{"X-Forwarded-For": "203.0.113.5"},
			want:   "203.0.113.5",
		},
		{
			name:   "ipv6 loopback proxy forwards an ipv6 client",
			peer:   "[::1]:5000",
			header: map[string]string{"X-Forwarded-For": "2001:db8::7"},
			want:   "2001:db8::7",
		},
		{
			name:   "client-supplied leftmost hop is skipped",
			peer:   "127.0.0.1:5000",
			header: map[string]string{"X-Forwarded-For": "10.1.1.1, 203.0.113.5, 172.20.0.3"},
			want:   "203.0.113.5",
		},
		{
			name:   "mapped ipv4 hop is reported in dotted form",
			peer:   "127.0.0.1:5000",
			header: map[string]string{"X-Forwarded-For": "::ffff:203.0.113.8"},
			want:   "203.0.113.8",
		},
		{
			name:   "hop with a port is dropped and x-real-ip used",
			peer:   "127.0.0.1:5000",
			header: map[string]string{"X-Forwarded-For": "203.0.113.5:4711", "X-Real-IP": " 203.0.113.9 "},
			want:   "203.0.113.9",
		},
		{
			name:   "no forwarding headers falls back to the proxy",
			peer:   "172.18.0.2:41000",
			header: nil,
			want:   "172.18.0.2",
		},
		{
			name:   "outside the container range headers are ignored",
			peer:   "172.32.0.1:41000",
			header: map[string]string{"X-Forwarded-For": "203.0.113.5", "X-Real-IP": "203.0.113.6"},
			want:   "172.32.0.1",
		},
		{
			name:   "chain of trusted hops returns the first",
			peer:   "127.0.0.1:5000",
			header: map[string]string{"X-Forwarded-For": "172.17.0.4, 172.17.0.5"},
			want:   "172.17.0.4",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "http://api.local/api/books", nil)
			req.RemoteAddr = tc.peer
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req, trusted); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClientIPWithoutTrustedProxies(t *testing.T) {
	req := httptest.NewRequest("GET", "http://api.local/api/books", nil)
	req.RemoteAddr = "198.51.100.10:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	req.Header.Set("X-Real-IP", "203.0.113.6")
	if got := ClientIP(req, nil); got != "198.51.100.10" {
		t.Fatalf("forwarding headers must be ignored, got %q", got)
	}

	req.RemoteAddr = "pipe"
	if got := ClientIP(req, nil); got != "pipe" {
		t.Fatalf("unparseable peer should be returned as is, got %q", got)
	}
}

func TestNewTrustedProxies(t *testing.T) {
	trusted, err := NewTrustedProxies(deploymentProxies)
	if err != nil {
		t.Fatalf("parse proxies: %v", err)
	}
	for addr, want := range map[string]bool{
		"127.0.0.1":        true,
		"::1":              true,
		"::ffff:127.0.0.1": true,
		"172.31.255.255":   true,
		"172.32.0.0":       false,
		"127.0.0.2":        false,
	} {
		if got := trusted.Contains(netip.MustParseAddr(addr)); got != want {
			t.Fatalf("Contains(%s) = %v, want %v", addr, got, want)
		}
	}

	if empty, err := NewTrustedProxies([]string{" ", ""}); err != nil || empty != nil {
		t.Fatalf("blank entries should trust nothing, got %v %v", empty, err)
	}
	if _, err := NewTrustedProxies([]string{"172.16.0.0/33"}); err == nil {
		t.Fatalf("expected parse error for invalid prefix")
	}
	if _, err := NewTrustedProxies([]string{"proxy.local"}); err == nil {
		t.Fatalf("expected parse error for hostname")
	}
}
