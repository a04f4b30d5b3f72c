package antcgi

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChallenge(t *testing.T) {
	header := `Digest realm="antMiner Configuration", nonce="abc123", qop="auth", opaque="xyz", algorithm=MD5`
	c := parseChallenge(header)
	require.NotNil(t, c)

	assert.Equal(t, "antMiner Configuration", c.Realm)
	assert.Equal(t, "abc123", c.Nonce)
	assert.Equal(t, "auth", c.QOP)
	assert.Equal(t, "xyz", c.Opaque)
	assert.Equal(t, "MD5", c.Algorithm)
}

func TestParseChallengeNotDigest(t *testing.T) {
	assert.Nil(t, parseChallenge(`Basic realm="whatever"`))
}

func TestAuthorizeQOPAuth(t *testing.T) {
	auth := NewDigestAuth("root", "root")
	c := &challenge{Realm: "antMiner Configuration", Nonce: "abc123", QOP: "auth"}

	header := auth.authorize("GET", "/cgi-bin/get_system_info.cgi", c)

	// nc starts at 1; cnonce is derived from it.
	ncStr := "00000001"
	cnonce := fmt.Sprintf("%08x", uint64(1)*12345)
	ha1 := md5Hex("root:antMiner Configuration:root")
	ha2 := md5Hex("GET:/cgi-bin/get_system_info.cgi")
	want := md5Hex(fmt.Sprintf("%s:abc123:%s:%s:auth:%s", ha1, ncStr, cnonce, ha2))

	assert.Contains(t, header, `username="root"`)
	assert.Contains(t, header, `realm="antMiner Configuration"`)
	assert.Contains(t, header, `uri="/cgi-bin/get_system_info.cgi"`)
	assert.Contains(t, header, fmt.Sprintf(`response="%s"`, want))
	assert.Contains(t, header, "qop=auth")
	assert.Contains(t, header, fmt.Sprintf("nc=%s", ncStr))
}

func TestAuthorizeWithoutQOP(t *testing.T) {
	auth := NewDigestAuth("root", "root")
	c := &challenge{Realm: "r", Nonce: "n"}

	header := auth.authorize("GET", "/", c)

	ha1 := md5Hex("root:r:root")
	ha2 := md5Hex("GET:/")
	want := md5Hex(fmt.Sprintf("%s:n:%s", ha1, ha2))

	assert.Contains(t, header, fmt.Sprintf(`response="%s"`, want))
	assert.NotContains(t, header, "qop=")
}

func TestNonceCounterIncrements(t *testing.T) {
	auth := NewDigestAuth("root", "root")
	c := &challenge{Realm: "r", Nonce: "n", QOP: "auth"}

	first := auth.authorize("GET", "/", c)
	second := auth.authorize("GET", "/", c)

	assert.Contains(t, first, "nc=00000001")
	assert.Contains(t, second, "nc=00000002")
}
