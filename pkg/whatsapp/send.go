package whatsapp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/flow"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/validation"
)

type Contact struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

const unnamedGroup = "Unnamed group"

type Group struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ParticipantsCount int    `json:"participantsCount,omitempty"`
}

// SendText sends a plain text message.
func (g *Gateway) SendText(ctx context.Context, chatID string, text string) error {
	_, err := g.SendTextMessage(ctx, chatID, text)
	return err
}

// SendTextMessage is SendText returning the id of the sent message.
func (g *Gateway) SendTextMessage(ctx context.Context, chatID string, text string) (string, error) {
	client, err := g.ready()
	if err != nil {
		return "", err
	}
	jid, err := ParseChatID(chatID)
	if err != nil {
		return "", err
	}

	msgExtra := whatsmeow.SendRequestExtra{ID: client.GenerateMessageID()}
	msgContent := &waE2E.Message{
		Conversation: proto.String(text),
	}
	if _, err := client.SendMessage(ctx, jid, msgContent, msgExtra); err != nil {
		return "", err
	}
	return msgExtra.ID, nil
}

// SendMedia resolves the media source, uploads it and sends it with its
// caption. ctx bounds the fetch, the upload and the send together.
func (g *Gateway) SendMedia(ctx context.Context, chatID string, media flow.Media) error {
	client, err := g.ready()
	if err != nil {
		return err
	}
	jid, err := ParseChatID(chatID)
	if err != nil {
		return err
	}

	file, err := FetchMedia(ctx, g.httpClient, media.Source, g.cfg.MediaMaxBytes)
	if err != nil {
		return err
	}
	mimeType := file.MimeType
	if media.MimeType != "" {
		mimeType = media.MimeType
	}

	var msgContent *waE2E.Message
	switch media.Kind {
	case flow.MediaImage:
		msgContent, err = g.imageMessage(ctx, client, file.Data, mimeType, media.Caption)
	case flow.MediaVideo:
		msgContent, err = uploadedMessage(ctx, client, file.Data, whatsmeow.MediaVideo, func(up whatsmeow.UploadResponse) *waE2E.Message {
			return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
				URL:           proto.String(up.URL),
				DirectPath:    proto.String(up.DirectPath),
				Mimetype:      proto.String(mimeType),
				Caption:       proto.String(media.Caption),
				FileLength:    proto.Uint64(up.FileLength),
				FileSHA256:    up.FileSHA256,
				FileEncSHA256: up.FileEncSHA256,
				MediaKey:      up.MediaKey,
			}}
		})
	case flow.MediaAudio:
		msgContent, err = uploadedMessage(ctx, client, file.Data, whatsmeow.MediaAudio, func(up whatsmeow.UploadResponse) *waE2E.Message {
			return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
				URL:           proto.String(up.URL),
				DirectPath:    proto.String(up.DirectPath),
				Mimetype:      proto.String(mimeType),
				FileLength:    proto.Uint64(up.FileLength),
				FileSHA256:    up.FileSHA256,
				FileEncSHA256: up.FileEncSHA256,
				MediaKey:      up.MediaKey,
			}}
		})
	case flow.MediaDocument:
		fileName := media.FileName
		if fileName == "" {
			fileName = file.FileName
		}
		if fileName == "" {
			fileName = "document"
		}
		msgContent, err = uploadedMessage(ctx, client, file.Data, whatsmeow.MediaDocument, func(up whatsmeow.UploadResponse) *waE2E.Message {
			return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
				URL:           proto.String(up.URL),
				DirectPath:    proto.String(up.DirectPath),
				Mimetype:      proto.String(mimeType),
				Title:         proto.String(fileName),
				FileName:      proto.String(fileName),
				Caption:       proto.String(media.Caption),
				FileLength:    proto.Uint64(up.FileLength),
				FileSHA256:    up.FileSHA256,
				FileEncSHA256: up.FileEncSHA256,
				MediaKey:      up.MediaKey,
			}}
		})
	default:
		return fmt.Errorf("unsupported media kind %q", media.Kind)
	}
	if err != nil {
		return err
	}

	msgExtra := whatsmeow.SendRequestExtra{ID: client.GenerateMessageID()}
	_, err = client.SendMessage(ctx, jid, msgContent, msgExtra)
	return err
}

func (g *Gateway) imageMessage(ctx context.Context, client *whatsmeow.Client, data []byte, mimeType string, caption string) (*waE2E.Message, error) {
	img, err := prepareImage(data, mimeType, g.cfg.ImageConvertWebP, g.cfg.ImageCompression)
	if err != nil {
		return nil, err
	}
	uploaded, err := client.Upload(ctx, img.Data, whatsmeow.MediaImage)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
		URL:           proto.String(uploaded.URL),
		DirectPath:    proto.String(uploaded.DirectPath),
		Mimetype:      proto.String(img.MimeType),
		Caption:       proto.String(caption),
		FileLength:    proto.Uint64(uploaded.FileLength),
		FileSHA256:    uploaded.FileSHA256,
		FileEncSHA256: uploaded.FileEncSHA256,
		MediaKey:      uploaded.MediaKey,
		JPEGThumbnail: img.Thumbnail,
	}}, nil
}

func uploadedMessage(ctx context.Context, client *whatsmeow.Client, data []byte, mediaType whatsmeow.MediaType, build func(whatsmeow.UploadResponse) *waE2E.Message) (*waE2E.Message, error) {
	uploaded, err := client.Upload(ctx, data, mediaType)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", mediaType, err)
	}
	return build(uploaded), nil
}

// React sends an emoji reaction to a received message.
func (g *Gateway) React(ctx context.Context, chatID string, senderID string, messageID string, emoji string) error {
	if err := validation.ValidateReaction(emoji); err != nil {
		return err
	}
	client, err := g.ready()
	if err != nil {
		return err
	}
	chat, err := ParseChatID(chatID)
	if err != nil {
		return err
	}
	sender := chat
	if senderID != "" {
		if sender, err = ParseChatID(senderID); err != nil {
			return err
		}
	}
	_, err = client.SendMessage(ctx, chat, client.BuildReaction(chat, sender, messageID, emoji))
	return err
}

// Contacts lists the address book synced from the phone, sorted by name.
func (g *Gateway) Contacts(ctx context.Context) ([]Contact, error) {
	client, err := g.ready()
	if err != nil {
		return nil, err
	}
	all, err := client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, err
	}

	contacts := make([]Contact, 0, len(all))
	for jid, info := range all {
		if jid.Server != types.DefaultUserServer {
			continue
		}
		name := contactName(info)
		if name == "" {
			name = jid.User
		}
		contacts = append(contacts, Contact{
			ID:     jid.String(),
			Name:   name,
			Number: jid.User,
		})
	}
	sort.Slice(contacts, func(i, j int) bool {
		if contacts[i].Name != contacts[j].Name {
			return strings.ToLower(contacts[i].Name) < strings.ToLower(contacts[j].Name)
		}
		return contacts[i].ID < contacts[j].ID
	})
	return contacts, nil
}

func contactName(info types.ContactInfo) string {
	for _, name := range []string{info.FullName, info.FirstName, info.BusinessName, info.PushName} {
		if name != "" {
			return name
		}
	}
	return ""
}

// Groups lists the groups the session has joined.
func (g *Gateway) Groups(ctx context.Context) ([]Group, error) {
	client, err := g.ready()
	if err != nil {
		return nil, err
	}
	joined, err := client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, err
	}

	groups := make([]Group, 0, len(joined))
	for _, info := range joined {
		if info == nil {
			continue
		}
		name := info.Name
		if name == "" {
			name = unnamedGroup
		}
		groups = append(groups, Group{
			ID:                info.JID.String(),
			Name:              name,
			ParticipantsCount: len(info.Participants),
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}
