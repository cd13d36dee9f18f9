package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	netmail "net/mail"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteMessage(t *testing.T) {
	msg, err := InviteMessage(InviteData{
		Email:      "student+1@example.com",
		FullName:   "Ana",
		SchoolName: "Harbor High",
		Role:       "STUDENT",
		AppURL:     "https://app.test/",
		ExpiresAt:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "You're invited to Harbor High", msg.Subject)
	assert.Equal(t, "student+1@example.com", msg.To[0].Address)
	assert.Contains(t, msg.Text, "as a student")
	assert.Contains(t, msg.Text, "https://app.test/signup?email=student%2B1%40example.com")
	assert.Contains(t, msg.Text, "1 June 2024")
	assert.Contains(t, msg.HTML, "<strong>Harbor High</strong>")
}

func TestSendGridSenderBuildsRequest(t *testing.T) {
	s := NewSendGridSender("key", "Classroom", "no-reply@classroom.test")
	var captured rest.Request
	s.do = func(req rest.Request) (*rest.Response, error) {
		captured = req
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}

	err := s.Send(context.Background(), Message{
		To:      []netmail.Address{{Address: "a@b.test"}},
		Subject: "Hi",
		Text:    "body",
	})
	require.NoError(t, err)
	assert.Equal(t, rest.Method(http.MethodPost), captured.Method)

	var body struct {
		Personalizations []struct {
			Subject string `json:"subject"`
		} `json:"personalizations"`
	}
	require.NoError(t, json.Unmarshal(captured.Body, &body))
	assert.Equal(t, "[Classroom] Hi", body.Personalizations[0].Subject)
}

func TestSendGridSenderSurfacesFailures(t *testing.T) {
	s := NewSendGridSender("key", "Classroom", "no-reply@classroom.test")
	msg := Message{To: []netmail.Address{{Address: "a@b.test"}}, Subject: "Hi", Text: "x"}

	s.do = func(rest.Request) (*rest.Response, error) {
		return &rest.Response{StatusCode: http.StatusUnauthorized, Body: "bad key"}, nil
	}
	assert.ErrorContains(t, s.Send(context.Background(), msg), "401")

	s.do = func(rest.Request) (*rest.Response, error) { return nil, errors.New("dial") }
	assert.Error(t, s.Send(context.Background(), msg))

	assert.Error(t, s.Send(context.Background(), Message{}))
}
