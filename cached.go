package accountstate

import (
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/internal/hydrate"
	"github.com/goliatone/go-accountstate/preferences"
	"github.com/goliatone/go-accountstate/revision"
	"github.com/goliatone/go-accountstate/watch"
)

// CachedPayloadVersion is the envelope version written by EncodeCachedAccount.
const CachedPayloadVersion = 1

// CachedAccount is an account whose own configuration was already resolved:
// the record, its watches and its user preferences at one revision.
type CachedAccount struct {
	Account     account.Account       `json:"account"`
	Watches     watch.Set             `json:"watches"`
	Preferences *preferences.Document `json:"preferences,omitempty"`
	Revision    revision.ID           `json:"revision,omitempty"`
}

type cachedEnvelope struct {
	Version int `json:"version"`
	CachedAccount
}

// EncodeCachedAccount serialises cached for a remote cache tier.
func EncodeCachedAccount(cached CachedAccount) ([]byte, error) {
	payload, err := json.Marshal(cachedEnvelope{Version: CachedPayloadVersion, CachedAccount: cached})
	if err != nil {
		return nil, fmt.Errorf("accountstate: encode cached account %s: %w", cached.Account.ID, err)
	}
	return payload, nil
}

var cachedDecoder = hydrate.NewDecoder(
	hydrate.WithPreHook[CachedAccount](checkPayloadVersion),
	hydrate.WithDisallowUnknownFields[CachedAccount](),
	hydrate.WithPostHook[CachedAccount](validateCached),
)

// DecodeCachedAccount parses a payload produced by EncodeCachedAccount.
// Failures match ErrInvalidPayload.
func DecodeCachedAccount(payload []byte) (CachedAccount, error) {
	cached, err := cachedDecoder.DecodeBytes(hydrate.Context{Source: "payload"}, payload)
	if err != nil {
		return CachedAccount{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return cached, nil
}

func checkPayloadVersion(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	raw, ok := payload["version"].(json.Number)
	if !ok {
		return nil, fmt.Errorf("missing version")
	}
	v, err := raw.Int64()
	if err != nil || v != CachedPayloadVersion {
		return nil, fmt.Errorf("unsupported version %s", raw)
	}
	delete(payload, "version")
	return payload, nil
}

func validateCached(_ hydrate.Context, cached *CachedAccount) error {
	if cached.Account.ID.IsInstallation() {
		return fmt.Errorf("account id is missing")
	}
	if cached.Preferences != nil && cached.Preferences.AccountID != cached.Account.ID {
		return fmt.Errorf("preferences owned by account %s", cached.Preferences.AccountID)
	}
	return nil
}
