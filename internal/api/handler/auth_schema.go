package handler

type tokenRequest struct {
	Username     string `json:"username"     validate:"required"`
	Password     string `json:"password"     validate:"required"`
	GrantType    string `json:"grantType"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// oauthTokenResponse is the RFC 6749 §5.1 body returned to form-encoded grants.
type oauthTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64,username"`
	Password string `json:"password" validate:"required,min=8,password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword"     validate:"required,min=8,password"`
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

type sessionRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type identityResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type errorResponse struct {
	Error string `json:"error"`
}
