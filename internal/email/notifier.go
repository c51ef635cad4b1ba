package email

import (
	"context"
	"net/url"
	"strings"
	"time"
)

type NotifierConfig struct {
	AppName         string
	BaseURL         string
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// Notifier renders account emails and hands them to the dispatcher.
type Notifier struct {
	dispatcher *Dispatcher
	cfg        NotifierConfig
}

func NewNotifier(dispatcher *Dispatcher, cfg NotifierConfig) *Notifier {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.AppName == "" {
		cfg.AppName = "Gatekeeper"
	}
	return &Notifier{dispatcher: dispatcher, cfg: cfg}
}

func (n *Notifier) SendVerificationEmail(_ context.Context, to, name, token string) {
	data := linkData{
		AppName: n.cfg.AppName,
		Name:    name,
		Link:    n.link("/verify-email", token),
		TTL:     formatTTL(n.cfg.VerificationTTL),
	}
	text, html, err := render(verificationText, verificationHTML, data)
	if err != nil {
		n.dispatcher.logger.Error("rendering verification email", "error", err)
		return
	}
	n.dispatcher.Enqueue(Message{To: to, Subject: "Verify your " + n.cfg.AppName + " email address", Text: text, HTML: html})
}

func (n *Notifier) SendPasswordResetEmail(_ context.Context, to, name, token string) {
	data := linkData{
		AppName: n.cfg.AppName,
		Name:    name,
		Link:    n.link("/reset-password", token),
		TTL:     formatTTL(n.cfg.ResetTTL),
	}
	text, html, err := render(resetText, resetHTML, data)
	if err != nil {
		n.dispatcher.logger.Error("rendering password reset email", "error", err)
		return
	}
	n.dispatcher.Enqueue(Message{To: to, Subject: "Reset your " + n.cfg.AppName + " password", Text: text, HTML: html})
}

func (n *Notifier) link(path, token string) string {
	return n.cfg.BaseURL + path + "?token=" + url.QueryEscape(token)
}
