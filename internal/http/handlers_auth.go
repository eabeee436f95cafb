package http

import (
	"net/http"
	"strings"

	"finora/internal/auth"
	"finora/internal/log"
)

// authPage is the data behind the login, register and recovery forms.
type authPage struct {
	Title    string
	Error    string
	Notice   string
	Name     string
	Email    string
	Redirect string
	Success  bool
}

// authStatus picks the response status for a failed auth form.
func authStatus(kind auth.Kind) int {
	switch kind {
	case auth.KindInvalidCredentials, auth.KindEmailNotConfirmed:
		return http.StatusUnauthorized
	case auth.KindAlreadyRegistered:
		return http.StatusConflict
	case auth.KindNetwork:
		return http.StatusServiceUnavailable
	case auth.KindOther:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	page := authPage{
		Title:    "Iniciar sesión",
		Redirect: safeRedirect(r.URL.Query().Get("redirect"), ""),
	}
	s.render(w, r, http.StatusOK, "login.html", page)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	page := authPage{Title: "Iniciar sesión"}
	if err := r.ParseForm(); err != nil {
		page.Error = "Formato de solicitud inválido."
		s.render(w, r, http.StatusBadRequest, "login.html", page)
		return
	}
	page.Email = sanitizeInput(r.PostForm.Get("email"))
	page.Redirect = safeRedirect(r.PostForm.Get("redirect"), "")
	password := r.PostForm.Get("password")

	if page.Email == "" || password == "" {
		page.Error = "Por favor ingresa tu correo y contraseña."
		s.render(w, r, http.StatusBadRequest, "login.html", page)
		return
	}

	gw, _ := s.startGateway(w, r)
	defer gw.Stop()

	if aerr := gw.SignIn(r.Context(), page.Email, password); aerr != nil {
		page.Error = aerr.Message
		s.render(w, r, authStatus(aerr.Kind), "login.html", page)
		return
	}

	target := safeRedirect(page.Redirect, dashboardPath)
	log.FromContext(r.Context()).Info("User signed in", log.FieldRedirect, target)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register.html", authPage{Title: "Crear cuenta"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	page := authPage{Title: "Crear cuenta"}
	if err := r.ParseForm(); err != nil {
		page.Error = "Formato de solicitud inválido."
		s.render(w, r, http.StatusBadRequest, "register.html", page)
		return
	}
	reg := auth.Registration{
		Name:            sanitizeInput(r.PostForm.Get("name")),
		Email:           sanitizeInput(r.PostForm.Get("email")),
		Password:        r.PostForm.Get("password"),
		ConfirmPassword: r.PostForm.Get("confirm_password"),
	}
	page.Name, page.Email = reg.Name, reg.Email

	if aerr := auth.ValidateRegistration(reg); aerr != nil {
		page.Error = aerr.Message
		s.render(w, r, http.StatusBadRequest, "register.html", page)
		return
	}

	gw, client := s.startGateway(w, r)
	defer gw.Stop()

	if aerr := gw.SignUp(r.Context(), reg.Email, reg.Password, reg.Name); aerr != nil {
		page.Error = aerr.Message
		s.render(w, r, authStatus(aerr.Kind), "register.html", page)
		return
	}

	// Stores without email confirmation sign the user in right away.
	if session, err := client.GetSession(r.Context()); err == nil && session != nil {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}

	page.Success = true
	page.Notice = "Revisa tu correo para confirmar tu cuenta antes de iniciar sesión."
	s.render(w, r, http.StatusOK, "register.html", page)
}

func (s *Server) handleForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "forgot_password.html", authPage{Title: "Recuperar contraseña"})
}

// handleForgotPassword asks the store for a recovery email. The answer does
// not reveal whether the address has an account.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	page := authPage{Title: "Recuperar contraseña"}
	if err := r.ParseForm(); err != nil {
		page.Error = "Formato de solicitud inválido."
		s.render(w, r, http.StatusBadRequest, "forgot_password.html", page)
		return
	}
	page.Email = sanitizeInput(r.PostForm.Get("email"))
	if page.Email == "" {
		page.Error = "Por favor ingresa tu correo electrónico."
		s.render(w, r, http.StatusBadRequest, "forgot_password.html", page)
		return
	}

	redirectTo := ""
	if s.appURL != "" {
		redirectTo = strings.TrimRight(s.appURL, "/") + "/login"
	}
	err := s.identityClient(w, r).ResetPasswordForEmail(r.Context(), page.Email, redirectTo)
	if err != nil {
		aerr := auth.Classify(err)
		if aerr.Kind == auth.KindNetwork || aerr.Kind == auth.KindInvalidEmail {
			page.Error = aerr.Message
			s.render(w, r, authStatus(aerr.Kind), "forgot_password.html", page)
			return
		}
		log.FromContext(r.Context()).Warn("Password recovery request failed", log.FieldError, err)
	}

	page.Success = true
	page.Notice = "Si el correo está registrado, recibirás un enlace para restablecer tu contraseña."
	s.render(w, r, http.StatusOK, "forgot_password.html", page)
}

// handleLogout ends the session. The local session is cleared even when
// the store cannot be reached.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	gw, _ := s.startGateway(w, r)
	defer gw.Stop()

	if err := gw.SignOut(r.Context()); err != nil {
		log.FromContext(r.Context()).Warn("Sign-out incomplete", log.FieldError, err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
