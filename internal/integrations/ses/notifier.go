// Package ses delivers recommendation digests through Amazon SES v2.
package ses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"
)

// permanentCodes are rejections that will fail the same way on every retry.
var permanentCodes = map[string]bool{
	"MessageRejected":                    true,
	"BadRequestException":                true,
	"NotFoundException":                  true,
	"MailFromDomainNotVerifiedException": true,
	"AccountSuspendedException":          true,
	"SendingPausedException":             true,
}

// sesAPI is the minimal SES v2 interface required by Notifier.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// DispatchError is a failed send, classified for the retry decision.
type DispatchError struct {
	Code string
	Err  error
	// IsPermanent is set when retrying cannot succeed.
	IsPermanent bool
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("ses: send email (%s): %v", e.Code, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func (e *DispatchError) Permanent() bool {
	return e.IsPermanent
}

type Notifier struct {
	api       sesAPI
	sender    string
	configSet string
}

type Option func(*Notifier)

// WithConfigurationSet tags every send with an SES configuration set.
func WithConfigurationSet(name string) Option {
	return func(n *Notifier) {
		n.configSet = strings.TrimSpace(name)
	}
}

func NewNotifier(api sesAPI, sender string, opts ...Option) (*Notifier, error) {
	if api == nil {
		return nil, errors.New("ses: api must not be nil")
	}
	if strings.TrimSpace(sender) == "" {
		return nil, errors.New("ses: sender address must not be empty")
	}
	n := &Notifier{api: api, sender: strings.TrimSpace(sender)}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Send emails a plain-text message to one recipient.
func (n *Notifier) Send(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return &DispatchError{Code: "MissingRecipient", Err: errors.New("recipient is empty"), IsPermanent: true}
	}
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.sender),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if n.configSet != "" {
		in.ConfigurationSetName = aws.String(n.configSet)
	}

	if _, err := n.api.SendEmail(ctx, in); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) *DispatchError {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return &DispatchError{Code: code, Err: err, IsPermanent: permanentCodes[code]}
	}
	return &DispatchError{Code: "Unknown", Err: err}
}
