package web

import (
	"html/template"

	"github.com/pinged/authkit"
)

type pageData struct {
	Routes  authkit.Routes
	Alert   *authkit.NormalizedError
	Errors  map[string]string
	Email   string
	SignUp  bool
	User    *authkit.User
	Google  bool
	Apple   bool
	Loading string
	Ping    string
	Service string
}

var pages = template.Must(template.New("layout").Parse(`
{{define "head"}}<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Pinged</title></head><body>
{{with .Alert}}<div class="alert" role="alert"><strong>{{.Title}}</strong><p>{{.Message}}</p></div>{{end}}
{{end}}

{{define "foot"}}</body></html>{{end}}

{{define "loading"}}{{template "head" .}}<p class="loading">{{.Loading}}</p>{{template "foot" .}}{{end}}

{{define "fault"}}{{template "head" .}}<p>Sign-in is unavailable. Please restart the app.</p>{{template "foot" .}}{{end}}

{{define "welcome"}}{{template "head" .}}
<h1>Pinged</h1>
{{if .Google}}<form method="post" action="{{.Routes.AuthEntry}}/google"><button>Continue with Google</button></form>{{end}}
{{if .Apple}}<form method="post" action="{{.Routes.AuthEntry}}/apple"><button>Continue with Apple</button></form>{{end}}
<a href="{{.Routes.AuthEntry}}/email">Continue with email</a>
{{template "foot" .}}{{end}}

{{define "email"}}{{template "head" .}}
<h1>{{if .SignUp}}Create account{{else}}Sign in{{end}}</h1>
<form method="post" action="{{.Routes.AuthEntry}}/email">
  <input type="hidden" name="mode" value="{{if .SignUp}}signup{{else}}signin{{end}}">
  <input type="email" name="email" value="{{.Email}}" placeholder="Email">
  {{with index .Errors "email"}}<p class="field-error">{{.}}</p>{{end}}
  <input type="password" name="password" placeholder="Password">
  {{with index .Errors "password"}}<p class="field-error">{{.}}</p>{{end}}
  {{if .SignUp}}<input type="password" name="confirmation" placeholder="Confirm password">
  {{with index .Errors "confirmation"}}<p class="field-error">{{.}}</p>{{end}}{{end}}
  <button>{{if .SignUp}}Sign up{{else}}Sign in{{end}}</button>
</form>
{{if .SignUp}}<a href="{{.Routes.AuthEntry}}/email">Already have an account?</a>{{else}}<a href="{{.Routes.AuthEntry}}/email?mode=signup">Create an account</a>{{end}}
{{template "foot" .}}{{end}}

{{define "home"}}{{template "head" .}}
<h1>Home</h1>
{{with .User}}<p class="user">Signed in as {{if .Email}}{{.Email}}{{else}}{{.ID}}{{end}}</p>{{end}}
{{with .Ping}}<p class="ping">{{.}}</p>{{end}}
{{with .Service}}<p class="service">{{.}}</p>{{end}}
<form method="post" action="{{.Routes.AppEntry}}/signout"><button>Sign out</button></form>
{{template "foot" .}}{{end}}
`))
