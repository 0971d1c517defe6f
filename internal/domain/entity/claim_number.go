package entity

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

const (
	ClaimNumberPrefix = "CLM"
	claimNumberRandom = 8
	// Crockford base32 без похожих символов I, L, O, U.
	claimNumberAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
)

// NewClaimNumber формирует номер вида CLM-<время base36>-<8 случайных символов>.
// Уникальность окончательно гарантирует уникальный индекс в хранилище.
func NewClaimNumber(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return ClaimNumberPrefix + "-" + ts + "-" + randomSuffix(claimNumberRandom)
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand не возвращает ошибок на поддерживаемых платформах.
		panic(err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = claimNumberAlphabet[int(b)%len(claimNumberAlphabet)]
	}
	return string(out)
}
