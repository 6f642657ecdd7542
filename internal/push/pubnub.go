package push

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go/v7"
)

// Publisher delivers reminder payloads over PubNub. The device app shell
// subscribes to the same channel and raises the local notification.
type Publisher struct {
	pn *pubnub.PubNub
}

type Config struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UUID         string
}

func NewPublisher(cfg Config) *Publisher {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UUID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey
	return &Publisher{pn: pubnub.NewPubNub(pnCfg)}
}

func (p *Publisher) Publish(ctx context.Context, channel string, message any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, status, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return fmt.Errorf("push.Publish: %w", err)
	}
	if status.Error != nil {
		return fmt.Errorf("push.Publish: status %d", status.StatusCode)
	}
	return nil
}
