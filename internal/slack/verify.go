// Package slack implements the inbound slash-command protocol: request
// signature verification, form parsing, and delayed responses via the
// command's response URL.
package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// maxTimestampSkew is the replay window. Requests whose timestamp differs
// from the current time by more than this, in either direction, are rejected.
const maxTimestampSkew = 300 * time.Second

// Verifier validates Slack request signatures. It fails closed: an empty
// signing secret rejects every request.
type Verifier struct {
	secret string
	now    func() time.Time
}

// NewVerifier creates a Verifier with the given signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret, now: time.Now}
}

// Verify reports whether signature authenticates body. The signature is
// Slack's v0 scheme: "v0=" + hex(HMAC-SHA256(secret, "v0:" + ts + ":" + body)).
// Missing headers, an unparseable timestamp, or a timestamp outside the
// replay window all return false. The comparison is constant-time.
func (v *Verifier) Verify(signature, timestamp string, body []byte) bool {
	if v.secret == "" || signature == "" || timestamp == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	skew := v.now().Unix() - ts
	if skew > int64(maxTimestampSkew.Seconds()) || skew < -int64(maxTimestampSkew.Seconds()) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
