package call

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nicebartender/botgate/event"
)

const (
	SendTimeout  = 12 * time.Second
	ShortTimeout = 5 * time.Second
	FileTimeout  = 120 * time.Second
)

// SendMessage posts chain to pos and returns the gateway's message id.
func (c *Caller) SendMessage(ctx context.Context, pos event.Position, chain event.Chain) (int64, error) {
	params := map[string]any{"message": chain}
	if pos.Group {
		params["message_type"] = "group"
		params["group_id"] = pos.ID
	} else {
		params["message_type"] = "private"
		params["user_id"] = pos.ID
	}

	c.log.Info("sending message", "to", pos.String(), "message", chain.String())
	data, err := c.Call(ctx, "send_msg", params, SendTimeout)
	if err != nil {
		return 0, err
	}

	var res struct {
		MessageID int64 `json:"message_id"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &res); err != nil {
			return 0, fmt.Errorf("decode send_msg result: %w", err)
		}
	}
	c.log.Info("message sent", "to", pos.String(), "message_id", res.MessageID)
	return res.MessageID, nil
}

func (c *Caller) DeleteMessage(ctx context.Context, messageID int64) error {
	_, err := c.Call(ctx, "delete_msg", map[string]any{"message_id": messageID}, ShortTimeout)
	return err
}

func (c *Caller) GetMessage(ctx context.Context, messageID int64) (*event.Message, error) {
	data, err := c.Call(ctx, "get_msg", map[string]any{"message_id": messageID}, ShortTimeout)
	if err != nil {
		return nil, err
	}
	return event.DecodeMessage(data)
}

// GetFile asks the gateway to download a received file and returns its
// local path. Large files can take a while.
func (c *Caller) GetFile(ctx context.Context, fileID string) (string, error) {
	data, err := c.Call(ctx, "get_file", map[string]any{"file_id": fileID}, FileTimeout)
	if err != nil {
		return "", err
	}
	var res struct {
		File string `json:"file"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("decode get_file result: %w", err)
	}
	return res.File, nil
}
