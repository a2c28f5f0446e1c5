package redact

import (
	"github.com/supergoodsystems/pii-scrub/pkg/event"
	piiconfig "github.com/supergoodsystems/pii-scrub/pkg/pii-config"
)

// TestRulesDoc covers the builtin categories, custom patterns and key rules
// used across the scrub tests.
const TestRulesDoc = `
vars:
  hashKey: test-key
rules:
  - id: bearer
    type: pattern
    pattern: "tok_[a-z0-9]+"
    redaction:
      method: hash
  - id: card
    type: creditcard
  - id: ssn
    type: usssn
    redaction:
      method: replace
      text: "[ssn]"
applications:
  - selector: "**$string"
    rules: ["@email", "@ip", card, ssn, bearer]
  - selector: "**"
    rules: ["@password"]
`

const testEventJSON = `{
  "user": {"email": "jane@example.com", "name": "Jane", "password": "hunter2", "ip": "10.0.0.1"},
  "request": {
    "headers": {"Authorization": "Bearer tok_abc123", "X-Forwarded-For": "10.0.0.1", "X-Trace": "trace tok_abc123"},
    "body": {
      "card": "4111 1111 1111 1111",
      "items": [{"sku": "a1", "note": "call 078-05-1120"}, {"sku": "b2", "note": "ok"}]
    }
  },
  "count": 3,
  "debug": true
}`

// CreateRules parses and compiles doc and panics on any error.
func CreateRules(doc string) *piiconfig.Rules {
	cfg, err := piiconfig.Parse([]byte(doc))
	if err != nil {
		panic(err)
	}
	rules, err := piiconfig.Compile(cfg)
	if err != nil {
		panic(err)
	}
	return rules
}

// CreateEvent returns a fresh event carrying an email, addresses, a card
// number, a social security number, a bearer token and a password.
func CreateEvent() *event.Value {
	return CreateEventFrom(testEventJSON)
}

func CreateEventFrom(js string) *event.Value {
	v, err := event.Parse([]byte(js))
	if err != nil {
		panic(err)
	}
	return v
}
