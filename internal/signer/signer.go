package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Scheme selects how the request signature is computed.
//
// SchemeConcat hashes body ‖ timestamp ‖ credential with SHA-256 and is what
// existing clients send. SchemeHMAC keys HMAC-SHA256 with the credential over
// body ‖ timestamp and is opt-in.
type Scheme string

const (
	SchemeConcat Scheme = "concat"
	SchemeHMAC   Scheme = "hmac"
)

const DefaultTolerance = 5 * time.Minute

type Reason string

const (
	ReasonMissingSignature Reason = "missing_signature"
	ReasonMissingTimestamp Reason = "missing_timestamp"
	ReasonInvalidTimestamp Reason = "invalid_timestamp"
	ReasonStaleTimestamp   Reason = "stale_timestamp"
	ReasonMismatch         Reason = "signature_mismatch"
)

// Unsigned reports whether the request never carried a usable signature,
// as opposed to carrying a wrong one.
func (r Reason) Unsigned() bool {
	switch r {
	case ReasonMissingSignature, ReasonMissingTimestamp, ReasonInvalidTimestamp, ReasonStaleTimestamp:
		return true
	default:
		return false
	}
}

func (r Reason) Message() string {
	switch r {
	case ReasonMissingSignature:
		return "missing x-signature header"
	case ReasonMissingTimestamp:
		return "missing x-timestamp header"
	case ReasonInvalidTimestamp:
		return "x-timestamp must be epoch milliseconds"
	case ReasonStaleTimestamp:
		return "request timestamp outside the allowed window"
	case ReasonMismatch:
		return "signature mismatch"
	default:
		return string(r)
	}
}

type Result struct {
	Valid  bool
	Reason Reason
}

func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case "", SchemeConcat:
		return SchemeConcat, nil
	case SchemeHMAC:
		return SchemeHMAC, nil
	default:
		return "", fmt.Errorf("unknown signature scheme %q", s)
	}
}

// Sign returns the hex signature a client must send for body at timestamp.
func Sign(scheme Scheme, body []byte, timestamp, credential string) string {
	if scheme == SchemeHMAC {
		mac := hmac.New(sha256.New, []byte(credential))
		mac.Write(body)
		mac.Write([]byte(timestamp))
		return hex.EncodeToString(mac.Sum(nil))
	}
	h := sha256.New()
	h.Write(body)
	h.Write([]byte(timestamp))
	h.Write([]byte(credential))
	return hex.EncodeToString(h.Sum(nil))
}

// Timestamp formats t the way clients put it in x-timestamp.
func Timestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

type Verifier struct {
	scheme    Scheme
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(scheme Scheme, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if scheme == "" {
		scheme = SchemeConcat
	}
	return &Verifier{scheme: scheme, tolerance: tolerance, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

func (v *Verifier) Scheme() Scheme { return v.scheme }

// Verify checks presence, freshness and then the signature itself. A stale
// timestamp is rejected even when the signature matches.
func (v *Verifier) Verify(body []byte, credential, signature, timestamp string) Result {
	signature = strings.TrimSpace(signature)
	timestamp = strings.TrimSpace(timestamp)
	if signature == "" {
		return Result{Reason: ReasonMissingSignature}
	}
	if timestamp == "" {
		return Result{Reason: ReasonMissingTimestamp}
	}
	ms, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return Result{Reason: ReasonInvalidTimestamp}
	}
	// bounds in integer millis; a Duration between now and an extreme ts saturates
	nowMs, tol := v.now().UnixMilli(), v.tolerance.Milliseconds()
	if ms < nowMs-tol || ms > nowMs+tol {
		return Result{Reason: ReasonStaleTimestamp}
	}

	expected := Sign(v.scheme, body, timestamp, credential)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return Result{Reason: ReasonMismatch}
	}
	return Result{Valid: true}
}
