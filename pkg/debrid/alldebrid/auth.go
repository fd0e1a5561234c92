package alldebrid

import (
	"context"
	gourl "net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

const pinPollInterval = 5 * time.Second

// BeginAuth starts the PIN flow: the user enters the pin on the AllDebrid
// site while CompleteAuth polls the check endpoint.
func (ad *AllDebrid) BeginAuth(ctx context.Context) (*types.AuthPrompt, error) {
	resp, err := ad.client.Get(ctx, ad.url("/pin/get", nil))
	if err != nil {
		return nil, &types.AuthError{Provider: ad.name, Reason: "pin request failed", Err: err}
	}
	var data PinGetResponse
	if err = json.Unmarshal(resp, &data); err != nil {
		return nil, &types.AuthError{Provider: ad.name, Reason: "unreadable pin response", Err: err}
	}
	if err = ad.apiError("pin get", data.Error); err != nil {
		return nil, &types.AuthError{Provider: ad.name, Reason: "pin request rejected", Err: err}
	}
	d := data.Data
	if d.Pin == "" || d.Check == "" {
		return nil, &types.AuthError{Provider: ad.name, Reason: "incomplete pin response"}
	}
	if u, err := gourl.ParseRequestURI(d.UserURL); err != nil || u.Host == "" || !strings.HasPrefix(u.Scheme, "http") {
		return nil, &types.AuthError{Provider: ad.name, Reason: "malformed verification URL"}
	}

	ad.pin = d.Pin
	return &types.AuthPrompt{
		VerificationURL: d.UserURL,
		UserCode:        d.Pin,
		PollCode:        d.Check,
		Interval:        pinPollInterval,
		ExpiresIn:       time.Duration(d.ExpiresIn) * time.Second,
	}, nil
}

// CompleteAuth polls pin/check until the user activates the pin, then
// returns the account apikey.
func (ad *AllDebrid) CompleteAuth(ctx context.Context, check string) (string, error) {
	if check == "" || ad.pin == "" {
		return "", &types.AuthError{Provider: ad.name, Reason: "missing pin state"}
	}

	query := gourl.Values{}
	query.Set("check", check)
	query.Set("pin", ad.pin)
	url := ad.url("/pin/check", query)

	ticker := time.NewTicker(pinPollInterval)
	defer ticker.Stop()

	for {
		resp, err := ad.client.Get(ctx, url)
		if err != nil {
			if types.IsCancelled(err) {
				return "", err
			}
			return "", &types.AuthError{Provider: ad.name, Reason: "pin poll failed", Err: err}
		}
		var data PinCheckResponse
		if err = json.Unmarshal(resp, &data); err != nil {
			return "", &types.AuthError{Provider: ad.name, Reason: "unreadable pin check response", Err: err}
		}
		if data.Error != nil {
			if data.Error.Code == "PIN_EXPIRED" {
				return "", &types.AuthError{Provider: ad.name, Reason: "pin expired"}
			}
			return "", &types.AuthError{Provider: ad.name, Reason: data.Error.Message}
		}
		if data.Data.Activated && data.Data.Apikey != "" {
			ad.logger.Info().Msg("PIN flow completed")
			return data.Data.Apikey, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// RequiresManualRevocation is true: AllDebrid apikeys are not revoked by
// logout, the user has to remove the key on the site.
func (ad *AllDebrid) RequiresManualRevocation() bool {
	return true
}
