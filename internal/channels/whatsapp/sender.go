package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mentorhub/crm-followup/internal/followup"
	"github.com/mentorhub/crm-followup/internal/leads"
)

// Sender adapts the gateway client to the dispatcher's channel interface.
// The gateway routes by subscriber id, which lives in the org's follow-up
// settings, so each send resolves it through the settings source.
type Sender struct {
	client   *Client
	settings followup.SettingsSource
}

var _ followup.ChannelSender = (*Sender)(nil)

// NewSender creates a dispatcher-facing WhatsApp sender.
func NewSender(client *Client, settings followup.SettingsSource) *Sender {
	return &Sender{client: client, settings: settings}
}

// Channel identifies this sender to the dispatcher.
func (s *Sender) Channel() followup.Channel { return followup.ChannelWhatsApp }

// Send delivers one rendered message to the lead's phone number.
func (s *Sender) Send(ctx context.Context, lead *leads.Lead, message string) error {
	if strings.TrimSpace(lead.Phone) == "" {
		return errors.New("whatsapp: lead has no phone number")
	}
	settings, err := s.settings.GetOrCreate(ctx, lead.OrgID)
	if err != nil {
		return fmt.Errorf("whatsapp: resolve subscriber: %w", err)
	}
	if strings.TrimSpace(settings.WhatsAppSubscriberID) == "" {
		return errors.New("whatsapp: no subscriber id configured for org")
	}
	_, err = s.client.SendText(ctx, SendTextRequest{
		SubscriberID: settings.WhatsAppSubscriberID,
		Phone:        lead.Phone,
		Message:      message,
	})
	return err
}
