// Package auth mints and checks the HMAC tokens that admit a participant
// into a room.
package auth

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/base64"
    "encoding/hex"
    "errors"
    "strconv"
    "strings"
    "time"
)

var (
    ErrTokenFormat = errors.New("invalid token format")
    ErrTokenSig    = errors.New("invalid token signature")
    ErrTokenExp    = errors.New("token expired")
    ErrTokenRoom   = errors.New("room mismatch")
    ErrNoSecret    = errors.New("token secret not configured")
)

// Claims carried by a room token.
type Claims struct {
    Identity string
    Room     string
    Exp      int64
}

func (c Claims) ExpiresAt() time.Time { return time.Unix(c.Exp, 0) }

// GenerateRoomToken builds
// base64url(b64(identity) + "." + b64(room) + "." + exp + "." + hex(hmac_sha256(secret, msg))).
// Identity and room are encoded so dots inside them cannot shift fields.
func GenerateRoomToken(secret, identity, room string, expUnix int64) (string, error) {
    if secret == "" {
        return "", ErrNoSecret
    }
    msg := enc(identity) + "." + enc(room) + "." + strconv.FormatInt(expUnix, 10)
    raw := msg + "." + hex.EncodeToString(sign(secret, msg))
    return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// ValidateRoomToken parses and checks a token. A token stays valid until
// exp+skew.
func ValidateRoomToken(secret, token string, now time.Time, skew time.Duration) (Claims, error) {
    if secret == "" {
        return Claims{}, ErrNoSecret
    }
    b, err := base64.RawURLEncoding.DecodeString(token)
    if err != nil {
        return Claims{}, ErrTokenFormat
    }
    parts := strings.Split(string(b), ".")
    if len(parts) != 4 {
        return Claims{}, ErrTokenFormat
    }
    identity, err := dec(parts[0])
    if err != nil {
        return Claims{}, ErrTokenFormat
    }
    room, err := dec(parts[1])
    if err != nil {
        return Claims{}, ErrTokenFormat
    }
    exp, err := strconv.ParseInt(parts[2], 10, 64)
    if err != nil {
        return Claims{}, ErrTokenFormat
    }
    got, err := hex.DecodeString(parts[3])
    if err != nil {
        return Claims{}, ErrTokenFormat
    }
    // constant-time compare
    if !hmac.Equal(sign(secret, strings.Join(parts[:3], ".")), got) {
        return Claims{}, ErrTokenSig
    }
    if now.After(time.Unix(exp, 0).Add(skew)) {
        return Claims{}, ErrTokenExp
    }
    return Claims{Identity: identity, Room: room, Exp: exp}, nil
}

// ValidateForRoom also requires the token to name room.
func ValidateForRoom(secret, token, room string, now time.Time, skew time.Duration) (Claims, error) {
    c, err := ValidateRoomToken(secret, token, now, skew)
    if err != nil {
        return Claims{}, err
    }
    if room != "" && c.Room != room {
        return Claims{}, ErrTokenRoom
    }
    return c, nil
}

func sign(secret, msg string) []byte {
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write([]byte(msg))
    return mac.Sum(nil)
}

func enc(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

func dec(s string) (string, error) {
    b, err := base64.RawURLEncoding.DecodeString(s)
    return string(b), err
}
