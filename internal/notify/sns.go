package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
)

// SNSDispatcher publishes invitations to SNS platform endpoints.
// The endpoint is the platform endpoint ARN.
type SNSDispatcher struct {
	client snsiface.SNSAPI
}

func NewSNSDispatcher(region string) (*SNSDispatcher, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("notify: aws session: %w", err)
	}
	return &SNSDispatcher{client: sns.New(sess)}, nil
}

// snsNotification is the per-platform message structure SNS expects when
// MessageStructure is "json". Each platform value is itself a JSON string.
type snsNotification struct {
	Default string `json:"default"`
	GCM     string `json:"GCM"`
	APNS    string `json:"APNS"`
}

type gcmPayload struct {
	Data     map[string]string `json:"data"`
	Priority string            `json:"priority"`
	TTL      int               `json:"time_to_live"`
}

func renderSNS(inv Invite) (string, error) {
	data := inv.Data()

	gcm, err := json.Marshal(gcmPayload{Data: data, Priority: "high", TTL: 0})
	if err != nil {
		return "", err
	}

	apns := map[string]any{"aps": map[string]any{"content-available": 1}}
	for k, v := range data {
		apns[k] = v
	}
	apnsJSON, err := json.Marshal(apns)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(snsNotification{
		Default: "incoming call from " + inv.CallerID,
		GCM:     string(gcm),
		APNS:    string(apnsJSON),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (d *SNSDispatcher) Dispatch(ctx context.Context, endpoint string, inv Invite) error {
	if endpoint == "" {
		return ErrInvalidEndpoint
	}
	msg, err := renderSNS(inv)
	if err != nil {
		return fmt.Errorf("notify: render sns message: %w", err)
	}
	_, err = d.client.PublishWithContext(ctx, &sns.PublishInput{
		TargetArn:        aws.String(endpoint),
		Message:          aws.String(msg),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return fmt.Errorf("notify: sns publish: %w", err)
	}
	return nil
}
