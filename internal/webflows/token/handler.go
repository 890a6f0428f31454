package token

import (
	"context"
	"errors"
	"log/slog"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/api"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/slogx"
)

// TokenAPI is the part of api.Client the handler needs.
type TokenAPI interface {
	ExchangeAuthCode(ctx context.Context, r api.AuthCodeRequest) (*api.TokenResponse, error)
	RefreshToken(ctx context.Context, r api.RefreshRequest) (*api.TokenResponse, error)
}

// Handler performs token requests for one client and validates the ID tokens
// that come back.
type Handler struct {
	config    domain.ClientConfiguration
	api       TokenAPI
	validator *Validator
	logger    *slog.Logger
}

func NewHandler(config domain.ClientConfiguration, tokenAPI TokenAPI, jwks JWKSSource, logger *slog.Logger) *Handler {
	return &Handler{
		config:    config,
		api:       tokenAPI,
		validator: &Validator{JWKS: jwks},
		logger:    slogx.OrDefault(logger),
	}
}

// ExchangeAuthCode trades an authorization code for tokens. state is the
// AuthState the login was started with; nil skips PKCE and nonce checks, which
// only legacy session migration does. The error is always a *TokenError.
func (h *Handler) ExchangeAuthCode(ctx context.Context, code string, state *domain.AuthState) (*domain.UserTokensResult, error) {
	req := api.AuthCodeRequest{
		ClientID:    h.config.ClientID,
		Code:        code,
		RedirectURI: h.config.RedirectURI,
	}
	if state != nil {
		req.CodeVerifier = state.CodeVerifier
	}

	resp, err := h.api.ExchangeAuthCode(ctx, req)
	if err != nil {
		h.logger.Debug("token request error response", "error", err)
		return nil, &TokenError{Kind: TokenRequestError, HTTPErr: asHTTPError(err)}
	}
	h.logger.Debug("token response", "response", resp.String())

	if resp.IDToken == "" {
		h.logger.Error("missing id token in token response")
		return nil, &TokenError{Kind: NoIDTokenReceived}
	}

	vctx := ValidationContext{
		Issuer:   h.config.Issuer(),
		ClientID: h.config.ClientID,
	}
	if state != nil {
		vctx.Nonce = state.Nonce
		vctx.ExpectedAMR = state.ExpectedAMR()
	}

	claims, err := h.validator.Validate(ctx, resp.IDToken, vctx)
	if err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			verr = &ValidationError{Kind: ValidationUnexpected, Message: err.Error()}
		}
		h.logger.Error("id token rejected", "reason", verr.Message)
		return nil, &TokenError{Kind: IDTokenNotValid, ValidationErr: verr}
	}

	return &domain.UserTokensResult{
		UserTokens: domain.UserTokens{
			AccessToken:   resp.AccessToken,
			RefreshToken:  resp.RefreshToken,
			IDToken:       resp.IDToken,
			IDTokenClaims: *claims,
		},
		Scope:     resp.Scope,
		ExpiresIn: resp.ExpiresIn,
	}, nil
}

// ExchangeRefreshToken gets fresh tokens. The ID token in the response, if
// any, is not validated. The error is always a *TokenError of kind
// TokenRequestError.
func (h *Handler) ExchangeRefreshToken(ctx context.Context, refreshToken, scope string) (*api.TokenResponse, error) {
	resp, err := h.api.RefreshToken(ctx, api.RefreshRequest{
		ClientID:     h.config.ClientID,
		RefreshToken: refreshToken,
		Scope:        scope,
	})
	if err != nil {
		h.logger.Debug("refresh token error response", "error", err)
		return nil, &TokenError{Kind: TokenRequestError, HTTPErr: asHTTPError(err)}
	}
	return resp, nil
}

func asHTTPError(err error) *domain.HTTPError {
	var he *domain.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return domain.NewUnexpectedError(err)
}
