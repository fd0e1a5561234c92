package premiumize

import (
	"context"
	"fmt"
	gourl "net/url"

	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

// BeginAuth returns the authorize redirect URL. Premiumize uses the implicit
// grant: the token comes back embedded in the callback, nothing is polled.
func (p *Premiumize) BeginAuth(ctx context.Context) (*types.AuthPrompt, error) {
	base, err := gourl.ParseRequestURI(p.authHost)
	if err != nil || base.Host == "" {
		return nil, &types.AuthError{Provider: p.name, Reason: fmt.Sprintf("malformed authorize URL %q", p.authHost), Err: err}
	}
	query := base.Query()
	query.Set("client_id", p.clientID)
	query.Set("response_type", "token")
	base.RawQuery = query.Encode()

	return &types.AuthPrompt{
		VerificationURL: base.String(),
	}, nil
}

// CompleteAuth extracts the access token from the OAuth callback URL. The
// implicit grant puts it in the fragment; some user agents move it into the
// query, so both are checked.
func (p *Premiumize) CompleteAuth(ctx context.Context, callbackURL string) (string, error) {
	u, err := gourl.Parse(callbackURL)
	if err != nil {
		return "", &types.AuthError{Provider: p.name, Reason: "malformed callback URL", Err: err}
	}

	if token := u.Query().Get("access_token"); token != "" {
		return token, nil
	}
	if u.Fragment != "" {
		frag, err := gourl.ParseQuery(u.Fragment)
		if err == nil {
			if token := frag.Get("access_token"); token != "" {
				return token, nil
			}
		}
	}

	return "", &types.AuthError{Provider: p.name, Reason: "callback carried no access token"}
}

// RequiresManualRevocation is false: revoking the grant on the Premiumize
// account page is optional, the local token is the only session state.
func (p *Premiumize) RequiresManualRevocation() bool {
	return false
}
