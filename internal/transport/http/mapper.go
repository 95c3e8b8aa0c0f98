package http

import (
	"time"

	"github.com/pixelclasses/chat-server/internal/chat"
	"github.com/pixelclasses/chat-server/internal/proto"
)

// outboundFromEvent converts a hub event into its wire frame. Inbox
// updates are handled by the write loop and never reach this mapper.
func outboundFromEvent(ev *chat.Event) any {
	switch ev.Kind {
	case chat.EventChat:
		return proto.ChatFrame{
			Type:     proto.OutboundTypeChat,
			ID:       ev.Message.ID,
			Sender:   ev.SenderName,
			Receiver: ev.ReceiverName,
			Message:  ev.Message.Content,
			TempID:   ev.TempID,
		}
	case chat.EventSeen:
		return proto.SeenFrame{
			Type:      proto.OutboundTypeSeen,
			MessageID: ev.MessageID,
		}
	case chat.EventEdit:
		return proto.EditFrame{
			Type:       proto.OutboundTypeEdit,
			ID:         ev.MessageID,
			NewContent: ev.NewContent,
		}
	case chat.EventDelete:
		return proto.DeleteFrame{
			Type: proto.OutboundTypeDelete,
			ID:   ev.MessageID,
		}
	case chat.EventUnseenCount:
		return proto.UnseenCountFrame{
			Type:             proto.OutboundTypeUnseenCount,
			TotalUnseenCount: ev.UnseenCount,
		}
	case chat.EventOnlineStatus:
		return proto.OnlineStatusFrame{
			Type:      proto.OutboundTypeOnlineStatus,
			OnlineIDs: ev.OnlineIDs,
		}
	default:
		return proto.ErrorFrame{Error: "unknown event"}
	}
}

func toInboxItems(entries []chat.InboxEntry) []proto.InboxItem {
	items := make([]proto.InboxItem, 0, len(entries))
	for _, e := range entries {
		item := proto.InboxItem{
			UserID:     e.UserID,
			Username:   e.Username,
			ProfilePic: e.ProfilePic,
		}
		if e.Latest != nil {
			item.LatestMessage = e.Latest.Content
			item.Timestamp = e.Latest.CreatedAt.UTC().Format(time.RFC3339)
			item.IsSeen = e.Latest.IsSeen
		}
		items = append(items, item)
	}
	return items
}
