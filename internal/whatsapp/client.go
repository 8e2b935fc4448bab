package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mdp/qrterminal/v3"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

var (
	ErrQRTimeout = errors.New("qr code was not scanned in time")
	ErrLoggedOut = errors.New("logged out from whatsapp")
)

var _ Messenger = (*Client)(nil)

// Client drives a whatsmeow connection and reports its lifecycle to a
// Session.
type Client struct {
	wa      *whatsmeow.Client
	session *Session
	logger  zerolog.Logger
	qrOut   io.Writer
}

func NewClient(device *store.Device, session *Session, logger zerolog.Logger) *Client {
	c := &Client{
		wa:      whatsmeow.NewClient(device, waLog.Zerolog(logger.With().Str("component", "whatsmeow").Logger())),
		session: session,
		logger:  logger,
		qrOut:   os.Stdout,
	}
	c.wa.AddEventHandler(c.handleEvent)
	return c
}

// Start begins pairing (when no credentials are stored) and connects.
// Readiness is reported asynchronously through the Session.
func (c *Client) Start(ctx context.Context) error {
	if c.wa.Store.ID == nil {
		qrChan, err := c.wa.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get qr channel: %w", err)
		}
		go c.watchQR(qrChan)
	} else {
		c.logger.Info().Str("jid", c.wa.Store.ID.String()).Msg("using stored whatsapp credentials")
		c.session.Advance(StateAuthenticated)
	}
	return c.connect(ctx)
}

// connect retries transport failures only; authentication problems surface
// as events and are never retried.
func (c *Client) connect(ctx context.Context) error {
	op := backoff.NewExponentialBackOff()
	op.MaxElapsedTime = 2 * time.Minute
	return backoff.RetryNotify(func() error {
		err := c.wa.Connect()
		if errors.Is(err, whatsmeow.ErrAlreadyConnected) {
			return nil
		}
		return err
	}, backoff.WithContext(op, ctx), func(err error, next time.Duration) {
		c.logger.Warn().Err(err).Dur("retry_in", next).Msg("whatsapp connect failed")
	})
}

func (c *Client) Close() {
	c.wa.Disconnect()
}

func (c *Client) watchQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			c.session.Advance(StateAwaitingQR)
			c.logger.Info().Dur("expires_in", item.Timeout).Msg("scan the QR code below with WhatsApp")
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, c.qrOut)
		case whatsmeow.QRChannelSuccess.Event:
			c.session.Advance(StateAuthenticated)
		case whatsmeow.QRChannelTimeout.Event:
			c.logger.Error().Msg("authentication failed: qr code timed out")
			c.session.Fail(ErrQRTimeout)
		case whatsmeow.QRChannelEventError:
			c.logger.Error().Err(item.Error).Msg("authentication failed")
			c.session.Fail(fmt.Errorf("pairing failed: %w", item.Error))
		default:
			c.logger.Error().Str("event", item.Event).Msg("authentication failed")
			c.session.Fail(fmt.Errorf("pairing failed: %s", item.Event))
		}
	}
}

func (c *Client) handleEvent(evt any) {
	switch e := evt.(type) {
	case *events.PairSuccess:
		c.logger.Info().Str("jid", e.ID.String()).Msg("whatsapp authenticated")
		c.session.Advance(StateAuthenticated)
	case *events.Connected:
		c.session.Advance(StateAuthenticated)
		if c.session.State() != StateReady {
			c.logger.Info().Msg("whatsapp client ready")
		}
		c.session.MarkReady(c)
	case *events.Disconnected:
		c.logger.Warn().Msg("whatsapp disconnected")
	case *events.StreamReplaced:
		c.logger.Warn().Msg("whatsapp stream replaced by another connection")
	case *events.LoggedOut:
		c.logger.Error().Str("reason", e.Reason.String()).Msg("whatsapp logged out")
		c.session.Fail(fmt.Errorf("%w: %s", ErrLoggedOut, e.Reason))
	case *events.ConnectFailure:
		if e.Reason.IsLoggedOut() {
			c.logger.Error().Str("reason", e.Reason.String()).Msg("authentication failed")
			c.session.Fail(fmt.Errorf("%w: %s", ErrLoggedOut, e.Reason))
			return
		}
		c.logger.Warn().Str("reason", e.Reason.String()).Str("message", e.Message).Msg("whatsapp connect failure")
	}
}

func (c *Client) SendText(ctx context.Context, chat ChatID, text string) error {
	jid, err := toJID(chat)
	if err != nil {
		return err
	}
	_, err = c.wa.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
	if err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

func (c *Client) SendMedia(ctx context.Context, chat ChatID, media Media, caption string) error {
	jid, err := toJID(chat)
	if err != nil {
		return err
	}

	image := isImage(media.MimeType)
	kind := whatsmeow.MediaDocument
	if image {
		kind = whatsmeow.MediaImage
	}
	up, err := c.wa.Upload(ctx, media.Data, kind)
	if err != nil {
		return fmt.Errorf("upload media: %w", err)
	}

	msg := &waE2E.Message{}
	if image {
		msg.ImageMessage = &waE2E.ImageMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(media.MimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}
	} else {
		msg.DocumentMessage = &waE2E.DocumentMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(media.MimeType),
			FileName:      proto.String(media.FileName),
			Title:         proto.String(media.FileName),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}
	}

	if _, err := c.wa.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("send media: %w", err)
	}
	return nil
}

func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	joined, err := c.wa.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("get joined groups: %w", err)
	}
	groups := make([]Group, 0, len(joined))
	for _, g := range joined {
		if g == nil || g.JID.Server != types.GroupServer {
			continue
		}
		groups = append(groups, Group{ID: g.JID.String(), Name: g.Name})
	}
	return groups, nil
}

// toJID maps a ChatID onto the JID the platform expects. The legacy c.us
// user server is rewritten to the current one.
func toJID(chat ChatID) (types.JID, error) {
	jid, err := types.ParseJID(string(chat))
	if err != nil {
		return types.JID{}, fmt.Errorf("invalid chat id %q: %w", chat, err)
	}
	if jid.User == "" {
		return types.JID{}, fmt.Errorf("invalid chat id %q: empty user", chat)
	}
	if jid.Server == types.LegacyUserServer {
		jid.Server = types.DefaultUserServer
	}
	return jid, nil
}

func isImage(mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])) {
	case "image/png", "image/jpeg", "image/webp":
		return true
	}
	return false
}
