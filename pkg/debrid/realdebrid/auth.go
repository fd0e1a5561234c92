package realdebrid

import (
	"context"
	"fmt"
	gourl "net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/bdashore3/Ferrite/internal/request"
	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

const (
	defaultAuthInterval = 5 * time.Second
	deviceGrantType     = "http://oauth.net/grant_type/device/1.0"
)

// BeginAuth starts the device-code flow: the user opens the verification URL
// and enters the user code while CompleteAuth polls for the credential.
func (r *RealDebrid) BeginAuth(ctx context.Context) (*types.AuthPrompt, error) {
	url := fmt.Sprintf("%s/device/code?client_id=%s&new_credentials=yes", r.authHost, gourl.QueryEscape(r.clientID))
	resp, err := r.client.Get(ctx, url)
	if err != nil {
		return nil, &types.AuthError{Provider: r.name, Reason: "device code request failed", Err: err}
	}
	var data DeviceCodeResponse
	if err = json.Unmarshal(resp, &data); err != nil {
		return nil, &types.AuthError{Provider: r.name, Reason: "unreadable device code response", Err: err}
	}
	if data.DeviceCode == "" {
		return nil, &types.AuthError{Provider: r.name, Reason: "no device code returned"}
	}
	if !validHTTPURL(data.VerificationURL) {
		return nil, &types.AuthError{Provider: r.name, Reason: fmt.Sprintf("malformed verification URL %q", data.VerificationURL)}
	}

	interval := time.Duration(data.Interval) * time.Second
	if interval <= 0 {
		interval = defaultAuthInterval
	}
	expires := time.Duration(data.ExpiresIn) * time.Second

	r.authInterval = interval
	if expires > 0 {
		r.authDeadline = time.Now().Add(expires)
	} else {
		r.authDeadline = time.Time{}
	}

	return &types.AuthPrompt{
		VerificationURL: data.VerificationURL,
		UserCode:        data.UserCode,
		PollCode:        data.DeviceCode,
		Interval:        interval,
		ExpiresIn:       expires,
	}, nil
}

// CompleteAuth polls the credentials endpoint until the user confirms, then
// exchanges the device credential for an access token. The token is returned
// but not installed; the session manager decides whether to persist it.
func (r *RealDebrid) CompleteAuth(ctx context.Context, deviceCode string) (string, error) {
	if deviceCode == "" {
		return "", &types.AuthError{Provider: r.name, Reason: "missing device code"}
	}

	interval := r.authInterval
	if interval <= 0 {
		interval = defaultAuthInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	credURL := fmt.Sprintf("%s/device/credentials?client_id=%s&code=%s",
		r.authHost, gourl.QueryEscape(r.clientID), gourl.QueryEscape(deviceCode))

	for {
		if !r.authDeadline.IsZero() && time.Now().After(r.authDeadline) {
			return "", &types.AuthError{Provider: r.name, Reason: "verification expired"}
		}

		resp, err := r.client.Get(ctx, credURL)
		if err != nil {
			if types.IsCancelled(err) {
				return "", err
			}
			// 403 means the user has not confirmed yet, keep polling.
			if request.IsStatus(err, 403) || request.IsStatus(err, 400) {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-ticker.C:
					continue
				}
			}
			return "", &types.AuthError{Provider: r.name, Reason: "credential poll failed", Err: err}
		}

		var creds DeviceCredentialsResponse
		if err = json.Unmarshal(resp, &creds); err != nil {
			return "", &types.AuthError{Provider: r.name, Reason: "unreadable credentials response", Err: err}
		}
		if creds.ClientID == "" || creds.ClientSecret == "" {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-ticker.C:
				continue
			}
		}

		return r.exchangeToken(ctx, creds, deviceCode)
	}
}

func (r *RealDebrid) exchangeToken(ctx context.Context, creds DeviceCredentialsResponse, deviceCode string) (string, error) {
	payload := gourl.Values{
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
		"code":          {deviceCode},
		"grant_type":    {deviceGrantType},
	}
	resp, err := r.client.PostForm(ctx, fmt.Sprintf("%s/token", r.authHost), payload)
	if err != nil {
		if types.IsCancelled(err) {
			return "", err
		}
		return "", &types.AuthError{Provider: r.name, Reason: "token exchange failed", Err: err}
	}
	var data TokenResponse
	if err = json.Unmarshal(resp, &data); err != nil {
		return "", &types.AuthError{Provider: r.name, Reason: "unreadable token response", Err: err}
	}
	if data.AccessToken == "" {
		return "", &types.AuthError{Provider: r.name, Reason: "empty access token"}
	}
	r.logger.Info().Msg("Device flow completed")
	return data.AccessToken, nil
}

// RequiresManualRevocation is false: clearing the local token is enough, the
// device credential expires on its own.
func (r *RealDebrid) RequiresManualRevocation() bool {
	return false
}

func validHTTPURL(raw string) bool {
	u, err := gourl.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
