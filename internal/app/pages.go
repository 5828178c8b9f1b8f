package app

import (
	"html/template"
	"net/http"
	"time"
)

// The two pages exist for browser-level smoke checks: a login form that
// sets the session cookie and a customers table behind it. Element ids are
// stable because automated browsers select by them.

var loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<html>
<head><title>Sign in</title></head>
<body>
<h1>Sign in</h1>
{{if .Error}}<p id="login-error">Invalid email or password</p>{{end}}
<form method="post" action="/login">
  <label>Email <input type="email" name="email" id="email"></label>
  <label>Password <input type="password" name="password" id="password"></label>
  <button type="submit" id="login-submit">Sign in</button>
</form>
</body>
</html>
`))

var customersPage = template.Must(template.New("customers").Parse(`<!doctype html>
<html>
<head><title>Customers</title></head>
<body>
<h1>Customers</h1>
<p id="signed-in-as">{{.Email}}</p>
<table id="customers-table">
  <thead><tr><th>Name</th><th>Email</th><th>Status</th></tr></thead>
  <tbody>
  {{range .Customers}}<tr data-id="{{.ID}}"><td>{{.Name}}</td><td>{{.Email}}</td><td>{{.Status}}</td></tr>
  {{end}}</tbody>
</table>
</body>
</html>
`))

func (a *App) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := struct{ Error bool }{Error: r.URL.Query().Get("error") != ""}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginPage.Execute(w, data); err != nil {
		a.logger.Error("render login page", "error", err)
	}
}

// handleLoginForm is the browser twin of auth.login: form fields in, a
// cookie and a redirect out.
func (a *App) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login?error=1", http.StatusSeeOther)
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	user, err := a.store.FindBy(r.Context(), "users", "email", email)
	if err != nil {
		http.Redirect(w, r, "/login?error=1", http.StatusSeeOther)
		return
	}
	hash, _ := user["password_hash"].(string)
	if err := verifyPassword(password, hash); err != nil {
		http.Redirect(w, r, "/login?error=1", http.StatusSeeOther)
		return
	}

	id, _ := user["id"].(string)
	role, _ := user["role"].(string)
	token, err := a.tokens.issue(id, email, role)
	if err != nil {
		a.logger.Error("issue token", "error", err)
		http.Redirect(w, r, "/login?error=1", http.StatusSeeOther)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(a.cfg.TokenTTL),
	})
	http.Redirect(w, r, "/customers", http.StatusSeeOther)
}

type customerRow struct {
	ID     string
	Name   string
	Email  string
	Status string
}

func (a *App) handleCustomersPage(w http.ResponseWriter, r *http.Request) {
	claims := identityFrom(r.Context())
	if claims == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	rows, err := a.store.List(r.Context(), "customers", 50)
	if err != nil {
		a.logger.Error("list customers", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	customers := make([]customerRow, 0, len(rows))
	for _, row := range rows {
		customers = append(customers, customerRow{
			ID:     str(row["id"]),
			Name:   str(row["name"]),
			Email:  str(row["email"]),
			Status: str(row["status"]),
		})
	}

	data := struct {
		Email     string
		Customers []customerRow
	}{Email: claims.Email, Customers: customers}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := customersPage.Execute(w, data); err != nil {
		a.logger.Error("render customers page", "error", err)
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
