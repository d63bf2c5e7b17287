package auth

import (
	"net/http"

	"github.com/tech-arch1tect/sessiongate/middleware/authgate"
	"github.com/tech-arch1tect/sessiongate/openapi"
	"github.com/tech-arch1tect/sessiongate/services/identity"
)

const docsTag = "auth"

// Describe records the endpoints mounted by Routes under prefix.
func (h *Handler) Describe(doc *openapi.OpenAPI, prefix string) {
	doc.Tag(docsTag, "Session lifecycle")
	cookie := h.config.Cookie.Name

	doc.Document(http.MethodPost, prefix+"/login").
		Summary("Log in with username and password").
		Tags(docsTag).
		HeaderParam(ClientMACHeader, "Client MAC address, recorded for audit", false).
		Body(LoginRequest{}, "Credentials").
		Response(http.StatusOK, TokenResponse{}, "Access token issued, session cookie set").
		ResponseHeader(http.StatusOK, "Set-Cookie", cookie+" session cookie").
		Response(http.StatusUnauthorized, authgate.ErrorBody{}, "Invalid credentials").
		Response(http.StatusTooManyRequests, nil, "Too many failed attempts").
		NoSecurity().
		Build()

	doc.Document(http.MethodPost, prefix+"/refresh").
		Summary("Exchange the session cookie for a new access token").
		Tags(docsTag).
		CookieParam(cookie, "Session token", true).
		Response(http.StatusOK, TokenResponse{}, "Access token issued; cookie replaced when the session rotated").
		Response(http.StatusUnauthorized, authgate.ErrorBody{}, "Session missing, invalid or expired").
		Security(openapi.CookieScheme).
		Build()

	doc.Document(http.MethodPost, prefix+"/logout").
		Summary("Revoke the current session").
		Tags(docsTag).
		CookieParam(cookie, "Session token", false).
		Response(http.StatusNoContent, nil, "Session revoked and cookie cleared").
		NoSecurity().
		Build()

	doc.Document(http.MethodPost, prefix+"/logout-all").
		Summary("Revoke every session of the caller").
		Tags(docsTag).
		Response(http.StatusOK, LogoutAllResponse{}, "Sessions revoked").
		Response(http.StatusUnauthorized, authgate.ErrorBody{}, "Not authenticated").
		Security(openapi.BearerScheme).
		Build()

	doc.Document(http.MethodGet, prefix+"/me").
		Summary("Current identity and effective permissions").
		Tags(docsTag).
		Response(http.StatusOK, UserResponse{}, "Current identity").
		Response(http.StatusUnauthorized, authgate.ErrorBody{}, "Not authenticated").
		Security(openapi.BearerScheme).
		Build()

	doc.Document(http.MethodGet, prefix+"/sessions").
		Summary("Active sessions of the caller").
		Tags(docsTag).
		Response(http.StatusOK, SessionListResponse{}, "Active sessions, most recently used first").
		Response(http.StatusUnauthorized, authgate.ErrorBody{}, "Not authenticated").
		Security(openapi.BearerScheme).
		Build()

	doc.Document(http.MethodPost, prefix+"/register").
		Summary("Create an account").
		Tags(docsTag).
		Body(identity.RegisterInput{}, "New account").
		Response(http.StatusCreated, RegisterResponse{}, "Account created").
		Response(http.StatusBadRequest, nil, "Invalid input").
		Response(http.StatusConflict, nil, "Username already exists").
		NoSecurity().
		Build()
}
