package validation

import (
	"math/big"
	"regexp"
	"strings"
	"sync"
	"time"
)

// RuleFunc checks an already-trimmed, non-empty value and returns a message
// when it is not acceptable.
type RuleFunc func(value string) string

var (
	rulesMu sync.RWMutex
	rules   = map[string]RuleFunc{
		"cui":  validateCUI,
		"iban": validateIBAN,
		"date": validateDate,
	}
)

// RegisterRule installs a named rule so templates can reference it. Existing
// names are overwritten.
func RegisterRule(name string, fn RuleFunc) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	rules[name] = fn
}

func ruleFor(name string) (RuleFunc, bool) {
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	fn, ok := rules[name]
	return fn, ok
}

var cuiDigits = regexp.MustCompile(`^\d{2,10}$`)

// validateCUI checks the control digit of a Romanian fiscal code. The
// optional RO prefix is accepted; the control key is 753217532 applied to the
// left-padded body.
func validateCUI(value string) string {
	v := strings.ToUpper(strings.TrimSpace(value))
	v = strings.TrimPrefix(v, "RO")
	v = strings.TrimSpace(v)
	if !cuiDigits.MatchString(v) {
		return "invalid fiscal code format"
	}

	body := v[:len(v)-1]
	control := int(v[len(v)-1] - '0')

	const key = "753217532"
	for len(body) < len(key) {
		body = "0" + body
	}
	sum := 0
	for i := 0; i < len(key); i++ {
		sum += int(body[i]-'0') * int(key[i]-'0')
	}
	check := sum * 10 % 11
	if check == 10 {
		check = 0
	}
	if check != control {
		return "fiscal code checksum does not match"
	}
	return ""
}

var ibanChars = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]{11,30}$`)

// validateIBAN runs the standard mod-97 check.
func validateIBAN(value string) string {
	v := strings.ToUpper(strings.ReplaceAll(value, " ", ""))
	if !ibanChars.MatchString(v) {
		return "invalid IBAN format"
	}

	rearranged := v[4:] + v[:4]
	var sb strings.Builder
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			sb.WriteString(big.NewInt(int64(r-'A') + 10).String())
		} else {
			sb.WriteRune(r)
		}
	}
	n, ok := new(big.Int).SetString(sb.String(), 10)
	if !ok {
		return "invalid IBAN format"
	}
	if new(big.Int).Mod(n, big.NewInt(97)).Int64() != 1 {
		return "IBAN checksum does not match"
	}
	return ""
}

// validateDate accepts ISO dates and the DD.MM.YYYY form printed on most
// Romanian paperwork.
func validateDate(value string) string {
	for _, layout := range []string{"2006-01-02", "02.01.2006"} {
		if _, err := time.Parse(layout, value); err == nil {
			return ""
		}
	}
	return "invalid date, use YYYY-MM-DD or DD.MM.YYYY"
}
