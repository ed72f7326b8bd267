package credentials

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	rtctokenbuilder "github.com/AgoraIO-Community/go-tokenbuilder/rtctokenbuilder"
)

var errBadAgoraKey = errors.New("credentials: agora app id and certificate must be 32 hex characters")

// AgoraIssuer builds Agora RTC tokens locally from the project's app id and
// app certificate. These are the tokens Agora SDK clients join channels with.
type AgoraIssuer struct {
	appID       string
	certificate string
}

func NewAgoraIssuer(appID, appCertificate string) (*AgoraIssuer, error) {
	if !agoraKey(appID) || !agoraKey(appCertificate) {
		return nil, errBadAgoraKey
	}
	return &AgoraIssuer{appID: appID, certificate: appCertificate}, nil
}

func (i *AgoraIssuer) Issue(ctx context.Context, req Request) (string, error) {
	req = req.withDefaults()
	if err := req.validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	expire := uint32(req.TTL / time.Second)
	tok, err := rtctokenbuilder.BuildTokenWithUid(i.appID, i.certificate, req.Channel, req.UID, agoraRole(req.Role), expire)
	if err != nil {
		return "", fmt.Errorf("credentials: build agora token: %w", err)
	}
	return tok, nil
}

func agoraRole(r Role) rtctokenbuilder.Role {
	if r == RoleSubscriber {
		return rtctokenbuilder.RoleSubscriber
	}
	return rtctokenbuilder.RolePublisher
}

func agoraKey(s string) bool {
	if len(s) != 32 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
