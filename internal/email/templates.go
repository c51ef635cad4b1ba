package email

import (
	"bytes"
	htmltemplate "html/template"
	"strconv"
	"text/template"
	"time"
)

type linkData struct {
	AppName string
	Name    string
	Link    string
	TTL     string
}

var verificationText = template.Must(template.New("verification").Parse(`Hello {{.Name}},

Please confirm your email address for {{.AppName}} by opening the link below:

    {{.Link}}

This link expires in {{.TTL}}.

If you didn't create an account, you can safely ignore this email.
`))

var verificationHTML = htmltemplate.Must(htmltemplate.New("verification").Parse(`<p>Hello {{.Name}},</p>
<p>Please confirm your email address for {{.AppName}}.</p>
<p><a href="{{.Link}}">Verify email</a></p>
<p>This link expires in {{.TTL}}.</p>
<p>If you didn't create an account, you can safely ignore this email.</p>
`))

var resetText = template.Must(template.New("reset").Parse(`Hello {{.Name}},

We received a request to reset your {{.AppName}} password. Open the link below to choose a new one:

    {{.Link}}

This link expires in {{.TTL}}.

If you didn't request a reset, you can safely ignore this email.
`))

var resetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(`<p>Hello {{.Name}},</p>
<p>We received a request to reset your {{.AppName}} password.</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>This link expires in {{.TTL}}.</p>
<p>If you didn't request a reset, you can safely ignore this email.</p>
`))

func render(text *template.Template, html *htmltemplate.Template, data linkData) (string, string, error) {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return "", "", err
	}
	if err := html.Execute(&hb, data); err != nil {
		return "", "", err
	}
	return tb.String(), hb.String(), nil
}

func formatTTL(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return strconv.Itoa(h) + " hours"
	default:
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return strconv.Itoa(m) + " minutes"
	}
}
