package audits

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	domain "github.com/bryanwahyu/profixion/internal/domain/audits"
)

// Delivery is one completion notice extracted from a provider callback.
// Profile is nil when the callback only announced a snapshot and the data
// still has to be fetched.
type Delivery struct {
	JobID          string
	ProfileURL     string
	Profile        json.RawMessage
	ProviderStatus string
	ProviderError  string
}

// NeedsFetch reports whether the profile data must be downloaded first.
func (d Delivery) NeedsFetch() bool { return len(d.Profile) == 0 }

// snapshot status values the provider sends in notification envelopes
const (
	providerStatusReady = "ready"
)

// webhookItem covers the fields both callback shapes may carry.
type webhookItem struct {
	SnapshotID string `json:"snapshot_id"`
	Status     string `json:"status"`
	Input      *struct {
		URL string `json:"url"`
	} `json:"input"`
	InputURL  string `json:"input_url"`
	URL       string `json:"url"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

func (it webhookItem) profileURL() string {
	switch {
	case it.Input != nil && it.Input.URL != "":
		return it.Input.URL
	case it.InputURL != "":
		return it.InputURL
	default:
		return it.URL
	}
}

func (it webhookItem) providerError() string {
	if it.Error == "" {
		return ""
	}
	if it.ErrorCode != "" {
		return fmt.Sprintf("%s (%s)", it.Error, it.ErrorCode)
	}
	return it.Error
}

// ParseWebhook extracts deliveries from a callback body. Two shapes are
// accepted: an array of scraped profile items, and a notification envelope
// carrying only snapshot_id and status. A body that is not JSON returns
// ErrValidation; an empty array yields no deliveries.
func ParseWebhook(body []byte) ([]Delivery, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		return nil, fmt.Errorf("%w: webhook body is not valid JSON", domain.ErrValidation)
	}

	switch body[0] {
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, fmt.Errorf("%w: webhook array: %v", domain.ErrValidation, err)
		}
		out := make([]Delivery, 0, len(raws))
		for _, raw := range raws {
			d, ok := parseItem(raw)
			if ok {
				out = append(out, d)
			}
		}
		return out, nil
	case '{':
		d, ok := parseItem(body)
		if !ok {
			return nil, fmt.Errorf("%w: webhook object carries neither snapshot id nor profile url", domain.ErrValidation)
		}
		return []Delivery{d}, nil
	default:
		return nil, fmt.Errorf("%w: webhook body must be an object or array", domain.ErrValidation)
	}
}

func parseItem(raw json.RawMessage) (Delivery, bool) {
	var it webhookItem
	if err := json.Unmarshal(raw, &it); err != nil {
		return Delivery{}, false
	}
	url := strings.TrimSpace(it.profileURL())
	d := Delivery{
		JobID:         strings.TrimSpace(it.SnapshotID),
		ProfileURL:    domain.CanonicalProfileURL(url),
		ProviderError: it.providerError(),
	}
	if url == "" {
		// envelope: only the snapshot is known
		if d.JobID == "" {
			return Delivery{}, false
		}
		d.ProviderStatus = strings.ToLower(strings.TrimSpace(it.Status))
		if d.ProviderStatus == "" {
			d.ProviderStatus = providerStatusReady
		}
		return d, true
	}
	d.Profile = raw
	return d, true
}

// firstProfile picks the first profile item out of a downloaded snapshot.
// Snapshots come back as an array; a bare object is accepted as-is.
func firstProfile(snapshot json.RawMessage) (Delivery, error) {
	snapshot = bytes.TrimSpace(snapshot)
	if len(snapshot) == 0 {
		return Delivery{}, fmt.Errorf("empty snapshot")
	}
	if snapshot[0] == '{' {
		d, _ := parseItem(snapshot)
		d.Profile = snapshot
		return d, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(snapshot, &raws); err != nil {
		return Delivery{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(raws) == 0 {
		return Delivery{}, fmt.Errorf("snapshot has no items")
	}
	d, _ := parseItem(raws[0])
	d.Profile = raws[0]
	return d, nil
}
