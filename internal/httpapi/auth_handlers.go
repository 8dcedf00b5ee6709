package httpapi

import (
	"net/http"
	"time"

	"myapp.dev/internal/audit"
	"myapp.dev/internal/auth"
	"myapp.dev/internal/idp"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type sessionResponse struct {
	User    map[string]any `json:"user"`
	Session *idp.Session   `json:"session"`
}

type userView struct {
	ID        int64       `json:"id"`
	UUID      string      `json:"uuid"`
	Firstname string      `json:"firstname"`
	Lastname  string      `json:"lastname"`
	Email     string      `json:"email"`
	IsAdmin   bool        `json:"isAdmin"`
	Status    auth.Status `json:"status"`
	Created   time.Time   `json:"created"`
	Modified  time.Time   `json:"modified"`
	Creator   *userView   `json:"creator"`
}

func newUserView(u *auth.User) *userView {
	if u == nil {
		return nil
	}
	return &userView{
		ID:        u.ID,
		UUID:      u.UUID,
		Firstname: u.Firstname,
		Lastname:  u.Lastname,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		Status:    u.Status,
		Created:   u.Created,
		Modified:  u.Modified,
	}
}

func (a *API) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.deps.Sessions.SignUp(r.Context(), auth.SignUpInput{
		Email:     req.Email,
		Password:  req.Password,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "auth.signup", map[string]any{"subject": res.User.ID})
	setCookies(w, res.Cookies)
	writeSuccess(w, http.StatusOK, "Logged in successfully", sessionResponse{User: res.User.UserMetadata, Session: res.Session}, nil)
}

func (a *API) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.deps.Sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "auth.signin", map[string]any{"subject": res.User.ID})
	setCookies(w, res.Cookies)
	writeSuccess(w, http.StatusOK, "Logged in successfully", sessionResponse{User: res.User.UserMetadata, Session: res.Session}, nil)
}

// handleSignOut always clears both cookies, even without a session.
func (a *API) handleSignOut(w http.ResponseWriter, r *http.Request) {
	cookies := a.deps.Sessions.SignOut(r.Context(), accessToken(r, a.deps.Sessions), refreshToken(r, a.deps.Sessions))
	audit.LogEvent(r.Context(), "auth.signout", nil)
	setCookies(w, cookies)
	writeSuccess(w, http.StatusOK, "Logged out successfully", nil, nil)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := a.deps.Sessions.Refresh(r.Context(), refreshToken(r, a.deps.Sessions))
	if err != nil {
		writeError(w, r, err)
		return
	}
	setCookies(w, res.Cookies)
	writeSuccess(w, http.StatusOK, "Token refreshed", map[string]any{"user": res.User}, nil)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := a.deps.Sessions.AuthenticatedUser(r.Context(), accessToken(r, a.deps.Sessions))
	if err != nil {
		writeError(w, r, err)
		return
	}
	creator, err := a.deps.Sessions.Resolver().Creator(r.Context(), u.Principal.User)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view := newUserView(u.Principal.User)
	if view != nil {
		view.Creator = newUserView(creator)
	}
	writeSuccess(w, http.StatusOK, "User found", map[string]any{
		"user":        view,
		"permissions": u.Principal.Codes(),
	}, nil)
}

func (a *API) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.deps.Sessions.ResetPassword(r.Context(), req.Email, a.opts.PasswordResetURL); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Password reset link sent", nil, nil)
}

func (a *API) handlePasswordUpdate(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.deps.Sessions.UpdatePassword(r.Context(), accessToken(r, a.deps.Sessions), req.Email, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "auth.password.update", nil)
	writeSuccess(w, http.StatusOK, "Password updated", nil, nil)
}
