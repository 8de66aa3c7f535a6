package oauth2provider

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// revoke posts an RFC 7009 revocation request with the client credentials in the form.
func (p *Provider) revoke(ctx context.Context, value, hint string) error {
	form := url.Values{}
	form.Set("token", value)
	form.Set("token_type_hint", hint)
	form.Set("client_id", p.config.ClientID)
	if p.config.ClientSecret != "" {
		form.Set("client_secret", p.config.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "[Provider.revoke] failed to build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := p.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	return statusError(resp.StatusCode)
}
