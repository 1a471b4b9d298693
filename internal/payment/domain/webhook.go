package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const EventTransactionUpdated = "transaction.updated"

// WebhookEvent is the body the gateway posts on transaction state changes.
type WebhookEvent struct {
	Event       string         `json:"event"`
	Data        WebhookData    `json:"data"`
	Environment string         `json:"environment"`
	Signature   EventSignature `json:"signature"`
	Timestamp   json.Number    `json:"timestamp"`
	SentAt      string         `json:"sent_at,omitempty"`

	raw map[string]any
}

type WebhookData struct {
	Transaction Transaction `json:"transaction"`
}

type EventSignature struct {
	Properties []string `json:"properties"`
	Checksum   string   `json:"checksum"`
}

var defaultSignedProperties = []string{"transaction.id", "transaction.status", "transaction.amount_in_cents"}

func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: malformed event body: %v", ErrValidation, err)
	}
	var raw struct {
		Data map[string]any `json:"data"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: malformed event data: %v", ErrValidation, err)
	}
	ev.raw = raw.Data
	return ev, nil
}

// SignedValues resolves the signed property paths (relative to data) to
// their string values in the order the gateway listed them.
func (e WebhookEvent) SignedValues() ([]string, error) {
	props := e.Signature.Properties
	if len(props) == 0 {
		props = defaultSignedProperties
	}
	values := make([]string, 0, len(props))
	for _, p := range props {
		v, ok := lookup(e.raw, strings.Split(p, "."))
		if !ok {
			return nil, fmt.Errorf("%w: signed property %q missing", ErrValidation, p)
		}
		values = append(values, v)
	}
	return values, nil
}

func lookup(m map[string]any, path []string) (string, bool) {
	var cur any = m
	for _, seg := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = obj[seg]
		if !ok {
			return "", false
		}
	}
	switch v := cur.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	case nil:
		return "", true
	default:
		return fmt.Sprint(v), true
	}
}
