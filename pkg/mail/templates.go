package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	"net/url"
	"strings"
	texttmpl "text/template"
	"time"
)

//go:embed templates/*
var templateFS embed.FS

var (
	inviteText = texttmpl.Must(texttmpl.ParseFS(templateFS, "templates/invite.txt"))
	inviteHTML = htmltmpl.Must(htmltmpl.ParseFS(templateFS, "templates/invite.html"))
)

// InviteData feeds the invitation templates.
type InviteData struct {
	Email      string
	FullName   string
	SchoolName string
	Role       string
	AppURL     string
	ExpiresAt  time.Time
}

// RoleLabel is the lower-case role with an article.
func (d InviteData) RoleLabel() string {
	role := strings.ToLower(d.Role)
	if role == "admin" {
		return "an admin"
	}
	return "a " + role
}

// SignupURL links to the sign-up page with the e-mail prefilled.
func (d InviteData) SignupURL() string {
	return fmt.Sprintf("%s/signup?email=%s", strings.TrimRight(d.AppURL, "/"), url.QueryEscape(d.Email))
}

// InviteMessage renders the invitation e-mail.
func InviteMessage(d InviteData) (Message, error) {
	var text, html bytes.Buffer
	if err := inviteText.Execute(&text, d); err != nil {
		return Message{}, fmt.Errorf("render invite text: %w", err)
	}
	if err := inviteHTML.Execute(&html, d); err != nil {
		return Message{}, fmt.Errorf("render invite html: %w", err)
	}
	return Message{
		To:      []mail.Address{{Name: d.FullName, Address: d.Email}},
		Subject: fmt.Sprintf("You're invited to %s", d.SchoolName),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
