package useragent

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDeviceInfo(t *testing.T) {
	cases := []struct {
		name string
		ua   string
		want string
	}{
		{
			"chrome on windows",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Chrome on Windows",
		},
		{
			"firefox on linux",
			"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			"Firefox on Linux",
		},
		{
			"safari on iphone",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			"Safari on iOS",
		},
		{
			"edge on mac",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
			"Edge on macOS",
		},
		{"empty", "", "Unknown Device"},
		{"unrecognized", "curl/8.4.0", "Unknown Browser on Unknown OS"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tc.ua != "" {
				r.Header.Set("User-Agent", tc.ua)
			}
			assert.Equal(t, tc.want, ExtractDeviceInfo(r))
		})
	}
}

func TestExtractIPAddress(t *testing.T) {
	t.Run("remote addr", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "203.0.113.7:51234"
		assert.Equal(t, "203.0.113.7", ExtractIPAddress(r))
	})

	t.Run("x-forwarded-for takes first hop", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1, 10.0.0.2")
		assert.Equal(t, "198.51.100.4", ExtractIPAddress(r))
	})

	t.Run("x-real-ip", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Real-IP", "198.51.100.9")
		assert.Equal(t, "198.51.100.9", ExtractIPAddress(r))
	})
}
