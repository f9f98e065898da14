package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownStage is returned when a persisted record names no known stage.
	ErrUnknownStage = errors.New("conversation: unknown stage")
	// ErrCorrupt is returned when a record's payload does not fit its stage.
	ErrCorrupt = errors.New("conversation: corrupt record")
)

// Unreadable reports whether err means the stored record can never be
// decoded and should be dropped.
func Unreadable(err error) bool {
	return errors.Is(err, ErrUnknownStage) || errors.Is(err, ErrCorrupt)
}

// Record is the persisted envelope of a conversation.
type Record struct {
	UserID    int64           `json:"user_id"`
	Stage     Stage           `json:"stage"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Encode wraps c into a Record stamped with at.
func Encode(userID int64, c Conversation, at time.Time) (Record, error) {
	if c == nil {
		return Record{}, fmt.Errorf("conversation: encode nil for user %d", userID)
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return Record{}, fmt.Errorf("conversation: encode %s: %w", c.Stage(), err)
	}
	return Record{UserID: userID, Stage: c.Stage(), Payload: raw, UpdatedAt: at.UTC()}, nil
}

// Decode restores the conversation stored in r.
func Decode(r Record) (Conversation, error) {
	switch r.Stage {
	case StageAwaitingMethod:
		return decodeAs[AwaitingMethod](r)
	case StageAwaitingPhone:
		return decodeAs[AwaitingPhone](r)
	case StageAwaitingName:
		return decodeAs[AwaitingName](r)
	case StageAwaitingAmount:
		return decodeAs[AwaitingAmount](r)
	case StageAwaitingConfirm:
		return decodeAs[AwaitingConfirm](r)
	case StageAwaitingRecipient:
		return decodeAs[AwaitingRecipient](r)
	case StageAwaitingTransferAmount:
		return decodeAs[AwaitingTransferAmount](r)
	case StageAwaitingDepositAmount:
		return decodeAs[AwaitingDepositAmount](r)
	case StageAwaitingReceipt:
		return decodeAs[AwaitingReceipt](r)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownStage, r.Stage)
	}
}

func decodeAs[T Conversation](r Record) (Conversation, error) {
	var v T
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &v); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %w", ErrCorrupt, r.Stage, err)
		}
	}
	return v, nil
}
