// File: captcha.go
package main

import (
	cryptorand "crypto/rand"
	"errors"
	"fmt"
	mathrand "math/rand/v2"
	"strings"
	"sync"
)

const (
	// DefaultLength 默认验证码长度
	DefaultLength = 6
	// DefaultAlphabet digits + lowercase letters
	DefaultAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	hexDigits = "0123456789ABCDEF"
)

// ErrInvalidInput is returned for a non-positive length or an empty alphabet.
var ErrInvalidInput = errors.New("captcha: invalid input")

// Rand is the random source used for challenges, glyph colors and noise.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// lockedRand serialises access to a process-wide generator.
type lockedRand struct {
	mu sync.Mutex
	r  *mathrand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func newChaCha8Rand() *mathrand.Rand {
	var seed [32]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		panic(err)
	}
	return mathrand.New(mathrand.NewChaCha8(seed))
}

var defaultRand Rand = &lockedRand{r: newChaCha8Rand()}

// Generator produces challenges and colors from a single random source.
type Generator struct {
	rnd Rand
}

// NewGenerator returns a Generator drawing from rnd, or from the
// process-wide source when rnd is nil.
func NewGenerator(rnd Rand) *Generator {
	if rnd == nil {
		rnd = defaultRand
	}
	return &Generator{rnd: rnd}
}

// Generate returns length characters sampled uniformly, with replacement, from alphabet.
func (g *Generator) Generate(length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("%w: length must be positive, got %d", ErrInvalidInput, length)
	}
	chars := []rune(alphabet)
	if len(chars) == 0 {
		return "", fmt.Errorf("%w: alphabet is empty", ErrInvalidInput)
	}
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		sb.WriteRune(chars[g.rnd.IntN(len(chars))])
	}
	return sb.String(), nil
}

// RandomColor returns a #RRGGBB code, each hex digit drawn from 16 values.
func (g *Generator) RandomColor() string {
	return randomColor(g.rnd)
}

func randomColor(rnd Rand) string {
	buf := make([]byte, 7)
	buf[0] = '#'
	for i := 1; i < 7; i++ {
		buf[i] = hexDigits[rnd.IntN(16)]
	}
	return string(buf)
}

// GenerateCaptcha uses the process-wide random source.
func GenerateCaptcha(length int, alphabet string) (string, error) {
	return NewGenerator(nil).Generate(length, alphabet)
}

// GenerateDefault 使用默认长度和字符集
func GenerateDefault() string {
	s, _ := GenerateCaptcha(DefaultLength, DefaultAlphabet)
	return s
}

// RandomColor uses the process-wide random source.
func RandomColor() string {
	return randomColor(defaultRand)
}
