package piiconfig

import (
	"math/big"
	"net/netip"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/supergoodsystems/pii-scrub/internal/shared"
)

// category is a builtin detector that config documents reference as
// "@name" or use as a rule type.
type category struct {
	name       string
	pattern    string
	keyPattern string
	groups     []int
	validate   func(string) bool
	anything   bool
	redaction  Redaction
}

// commonCategories are the members of "@common".
var commonCategories = []string{"ip", "email", "creditcard", "password", "usssn"}

const ipv4Octet = `(?:25[0-5]|2[0-4][0-9]|1[0-9][0-9]|[1-9]?[0-9])`

var categories = map[string]*category{
	"email": {
		name:      "email",
		pattern:   `[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)+`,
		redaction: Redaction{Method: MethodReplace, Text: "[email]"},
	},
	"ip": {
		name:      "ip",
		pattern:   `\b(?:` + ipv4Octet + `\.){3}` + ipv4Octet + `\b|[0-9a-fA-F]{0,4}(?::[0-9a-fA-F]{0,4}){2,7}`,
		validate:  validIP,
		redaction: Redaction{Method: MethodReplace, Text: "[ip]"},
	},
	"creditcard": {
		name:      "creditcard",
		pattern:   `\b(?:[0-9][ \-]?){12,18}[0-9]\b`,
		validate:  func(s string) bool { return luhn(s, 13, 19) },
		redaction: Redaction{Method: MethodMask, Suffix: 4},
	},
	"iban": {
		name:      "iban",
		pattern:   `\b[A-Z]{2}[0-9]{2}(?: ?[A-Z0-9]){11,30}\b`,
		validate:  validIBAN,
		redaction: Redaction{Method: MethodMask, Suffix: 4},
	},
	"mac": {
		name:      "mac",
		pattern:   `\b[0-9a-fA-F]{2}(?:[:\-][0-9a-fA-F]{2}){5}\b`,
		redaction: Redaction{Method: MethodMask, Prefix: 8},
	},
	"uuid": {
		name:      "uuid",
		pattern:   `\b[0-9a-fA-F]{8}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{12}\b`,
		validate:  validUUID,
		redaction: Redaction{Method: MethodMask},
	},
	"imei": {
		name:      "imei",
		pattern:   `\b[0-9]{2}-?[0-9]{6}-?[0-9]{6}-?[0-9]\b`,
		validate:  func(s string) bool { return luhn(s, 15, 15) },
		redaction: Redaction{Method: MethodReplace, Text: "[imei]"},
	},
	"usssn": {
		name:      "usssn",
		pattern:   `\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`,
		redaction: Redaction{Method: MethodMask},
	},
	"userpath": {
		name:      "userpath",
		pattern:   `(?i)(?:/(?:home|users)/|[a-z]:\\(?:users|documents and settings)\\)([^/\\\r\n]+)`,
		groups:    []int{1},
		redaction: Redaction{Method: MethodReplace, Text: "[user]"},
	},
	"password": {
		name:       "password",
		keyPattern: `(?i)(password|secret|passwd|api_key|apikey|auth|credentials|mysql_pwd|privatekey|private_key|token)`,
		redaction:  Redaction{Method: MethodRemove},
	},
	"anything": {
		name:      "anything",
		anything:  true,
		redaction: Redaction{Method: MethodRemove},
	},
}

// Categories lists the builtin category names in sorted order.
func Categories() []string {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newMatcher builds the matcher of a category. Builtin patterns are
// constants, so a compile failure is a programming error.
func (c *category) newMatcher() matcher {
	switch {
	case c.anything:
		return anythingMatcher{}
	case c.keyPattern != "":
		return pairMatcher{key: regexp.MustCompile(c.keyPattern)}
	}
	m, err := newPatternMatcher(c.pattern, c.groups)
	if err != nil {
		panic(err)
	}
	m.validate = c.validate
	return m
}

// withDefaults fills the fields a redaction leaves empty from the category
// default for the same method.
func (c *category) withDefaults(method string) Redaction {
	if method == c.redaction.Method {
		return c.redaction
	}
	r := Redaction{Method: method}
	if method == MethodReplace {
		r.Text = shared.DefaultReplacement
	}
	return r
}

func validIP(s string) bool {
	_, err := netip.ParseAddr(s)
	return err == nil
}

func validUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// luhn checks the digits of s against the Luhn checksum, ignoring
// separators, and requires between min and max digits.
func luhn(s string, min, max int) bool {
	var digits []int
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits = append(digits, int(c-'0'))
		case c == ' ' || c == '-':
		default:
			return false
		}
	}
	if len(digits) < min || len(digits) > max {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// validIBAN applies the ISO 13616 mod-97 check.
func validIBAN(s string) bool {
	s = strings.ReplaceAll(s, " ", "")
	if len(s) < 15 || len(s) > 34 {
		return false
	}
	rearranged := s[4:] + s[:4]
	var b strings.Builder
	for i := 0; i < len(rearranged); i++ {
		c := rearranged[i]
		switch {
		case c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteString(big.NewInt(int64(c-'A') + 10).String())
		default:
			return false
		}
	}
	n, ok := new(big.Int).SetString(b.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}
