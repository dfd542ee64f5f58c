package video

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioJwt "github.com/twilio/twilio-go/client/jwt"
	videoV1 "github.com/twilio/twilio-go/rest/video/v1"
)

// TwilioClient provisions media rooms and mints join tokens with the
// external video provider. The coordinator only ever hands it a room id;
// media itself never touches this service.
type TwilioClient struct {
	accountSID string
	apiKey     string
	apiSecret  string
	client     *twilio.RestClient
}

func NewTwilioClient(accountSID, apiKey, apiSecret string) *TwilioClient {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   apiKey,
		Password:   apiSecret,
		AccountSid: accountSID,
	})
	return &TwilioClient{
		accountSID: accountSID,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		client:     client,
	}
}

// ProvisionRoom creates a group room named by the session's room id.
// A room that already exists counts as provisioned.
func (t *TwilioClient) ProvisionRoom(_ context.Context, roomID string) error {
	params := &videoV1.CreateRoomParams{}
	params.SetUniqueName(roomID)
	params.SetType("group")

	if _, err := t.client.VideoV1.CreateRoom(params); err != nil {
		return fmt.Errorf("failed to create video room %s: %w", roomID, err)
	}
	return nil
}

// JoinToken mints a short-lived access token granting the identity entry to
// the given room.
func (t *TwilioClient) JoinToken(roomID, identity string) (string, error) {
	token := twilioJwt.CreateAccessToken(twilioJwt.AccessTokenParams{
		AccountSid:    t.accountSID,
		SigningKeySid: t.apiKey,
		Secret:        t.apiSecret,
		Identity:      identity,
	})
	token.AddGrant(&twilioJwt.VideoGrant{Room: roomID})

	signed, err := token.ToJwt()
	if err != nil {
		return "", fmt.Errorf("failed to sign join token: %w", err)
	}
	return signed, nil
}
