// Package session issues and verifies the signed tokens that bind a score
// submission to the context it was played in. A token is minted when a round
// starts (solo attempt, duel start, challenge entry) and must accompany the
// submission; the server rejects scores whose token is missing, tampered,
// stale, or submitted outside the play window.
package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Roshan1299/67-Royale/models"
)

type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeDuel      Mode = "duel"
	ModeChallenge Mode = "challenge"
)

// TokenTTL bounds how long a minted token is accepted at all, independent of
// the per-round submission window.
const TokenTTL = 10 * time.Minute

// SubmitGrace pads the upper edge of the timed submission window to absorb
// client clock skew and network latency.
const SubmitGrace = 30 * time.Second

// Claims is the signed payload. IssuedAt is unix milliseconds.
type Claims struct {
	Mode        Mode   `json:"mode"`
	DurationMS  int    `json:"duration_ms"`
	DuelID      string `json:"duel_id,omitempty"`
	ChallengeID string `json:"challenge_id,omitempty"`
	PlayerKey   string `json:"player_key,omitempty"`
	IssuedAt    int64  `json:"iat"`
}

// Codec signs and verifies session tokens with HMAC-SHA256.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), ttl: TokenTTL, now: time.Now}
}

// Issue mints a token for the given claims, stamping IssuedAt if unset.
func (c *Codec) Issue(claims Claims) (string, error) {
	if claims.IssuedAt == 0 {
		claims.IssuedAt = c.now().UnixMilli()
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode session claims: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + c.sign(body), nil
}

// Verify checks the signature and TTL and returns the claims, or nil if the
// token is absent, malformed, forged, or older than the codec TTL. It never
// panics on hostile input; any failure reads as "no session".
func (c *Codec) Verify(token string) *Claims {
	if token == "" {
		return nil
	}
	body, mac, ok := strings.Cut(token, ".")
	if !ok {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(mac), []byte(c.sign(body))) != 1 {
		return nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil
	}
	if claims.IssuedAt <= 0 {
		return nil
	}
	issued := time.UnixMilli(claims.IssuedAt)
	if c.now().Sub(issued) > c.ttl {
		return nil
	}
	return &claims
}

func (c *Codec) sign(body string) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// ValidateSubmissionTiming checks that a submission arrives inside the play
// window for its claims. Timed modes cannot finish before the round length
// has elapsed and cannot land after duration plus grace. The rep-race mode
// has no fixed length, so only early submission is rejected there.
func ValidateSubmissionTiming(claims *Claims, submittedAt time.Time) error {
	issued := time.UnixMilli(claims.IssuedAt)
	if models.Is67RepsMode(claims.DurationMS) {
		// Elapsed time is the score itself; anything under a second is
		// physically implausible for 67 reps.
		if submittedAt.Sub(issued) < time.Second {
			return fmt.Errorf("submitted too early")
		}
		return nil
	}
	elapsed := submittedAt.Sub(issued)
	if elapsed < time.Duration(claims.DurationMS)*time.Millisecond {
		return fmt.Errorf("submitted too early")
	}
	if elapsed > time.Duration(claims.DurationMS)*time.Millisecond+SubmitGrace {
		return fmt.Errorf("session expired")
	}
	return nil
}

// NewPlayerKey returns the opaque per-seat identifier embedded in duel and
// challenge tokens.
func NewPlayerKey() string {
	return uuid.NewString()
}

// lobbyAlphabet omits 0/O/1/I to keep codes readable over voice.
const lobbyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewLobbyCode returns a 6-character join code for private duels.
func NewLobbyCode() (string, error) {
	max := big.NewInt(int64(len(lobbyAlphabet)))
	code := make([]byte, 6)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate lobby code: %w", err)
		}
		code[i] = lobbyAlphabet[n.Int64()]
	}
	return string(code), nil
}
