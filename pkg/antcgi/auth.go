package antcgi

import (
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
)

// Default credentials shipped on stock Antminer control boards.
const (
	DefaultUsername = "root"
	DefaultPassword = "root"
)

// DigestAuth holds credentials for HTTP Digest Authentication, the only
// scheme stock firmware web interfaces accept.
type DigestAuth struct {
	Username string
	Password string
	nc       uint64 // nonce counter
}

// NewDigestAuth creates a digest auth handler.
func NewDigestAuth(username, password string) *DigestAuth {
	return &DigestAuth{Username: username, Password: password}
}

// DigestTransport is an http.RoundTripper that answers 401 digest
// challenges transparently: first request unauthenticated, then a retry
// carrying the computed Authorization header.
type DigestTransport struct {
	Auth      *DigestAuth
	Transport http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *DigestTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	transport := t.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	header := resp.Header.Get("WWW-Authenticate")
	if !strings.HasPrefix(header, "Digest ") {
		return resp, nil
	}

	challenge := parseChallenge(header)
	if challenge == nil {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", t.Auth.authorize(req.Method, req.URL.RequestURI(), challenge))
	return transport.RoundTrip(authed)
}

// challenge holds the fields of a WWW-Authenticate: Digest header.
type challenge struct {
	Realm     string
	Nonce     string
	QOP       string
	Algorithm string
	Opaque    string
}

func parseChallenge(header string) *challenge {
	if !strings.HasPrefix(header, "Digest ") {
		return nil
	}

	c := &challenge{}
	for _, part := range strings.Split(header[len("Digest "):], ",") {
		part = strings.TrimSpace(part)
		idx := strings.Index(part, "=")
		if idx <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(part[:idx]))
		value := strings.Trim(strings.TrimSpace(part[idx+1:]), `"`)

		switch key {
		case "realm":
			c.Realm = value
		case "nonce":
			c.Nonce = value
		case "qop":
			c.QOP = value
		case "algorithm":
			c.Algorithm = value
		case "opaque":
			c.Opaque = value
		}
	}
	return c
}

// authorize computes the Authorization header value for one request.
func (a *DigestAuth) authorize(method, uri string, c *challenge) string {
	nc := atomic.AddUint64(&a.nc, 1)
	ncStr := fmt.Sprintf("%08x", nc)
	cnonce := fmt.Sprintf("%08x", nc*12345)

	ha1 := md5Hex(fmt.Sprintf("%s:%s:%s", a.Username, c.Realm, a.Password))
	ha2 := md5Hex(fmt.Sprintf("%s:%s", method, uri))

	var response string
	if c.QOP == "auth" || c.QOP == "auth-int" {
		response = md5Hex(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, c.Nonce, ncStr, cnonce, c.QOP, ha2))
	} else {
		response = md5Hex(fmt.Sprintf("%s:%s:%s", ha1, c.Nonce, ha2))
	}

	header := fmt.Sprintf(`Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		a.Username, c.Realm, c.Nonce, uri, response)
	if c.QOP != "" {
		header += fmt.Sprintf(`, qop=%s, nc=%s, cnonce="%s"`, c.QOP, ncStr, cnonce)
	}
	if c.Opaque != "" {
		header += fmt.Sprintf(`, opaque="%s"`, c.Opaque)
	}
	return header
}

func md5Hex(s string) string {
	h := md5.New()
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum(nil))
}
